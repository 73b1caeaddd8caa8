// Package credentials checks login pairs against a remotely published
// comma-separated table. The table is re-fetched on every call.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrFetchFailed is returned when the credential table could not be retrieved.
var ErrFetchFailed = errors.New("credential fetch failed")

// Verifier fetches the credential table and matches submitted pairs against it
type Verifier struct {
	client       *http.Client
	url          string
	maxBodyBytes int64
	logger       *zap.Logger
}

// Options configures a Verifier
type Options struct {
	URL          string
	Timeout      time.Duration
	MaxBodyBytes int64
	Client       *http.Client
}

// NewVerifier creates a verifier for the table at opts.URL
func NewVerifier(opts Options, logger *zap.Logger) *Verifier {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		client:       client,
		url:          opts.URL,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
}

// Verify reports whether (id, key) appears as a row of the table.
// A false result with nil error means the table was read and nothing matched.
func (v *Verifier) Verify(ctx context.Context, id, key string) (bool, error) {
	body, err := v.fetch(ctx)
	if err != nil {
		v.logger.Warn("Credential fetch failed", zap.String("url", v.url), zap.Error(err))
		return false, err
	}

	rows := 0
	found := MatchRows(body, id, key, func() { rows++ })
	v.logger.Debug("Credential table scanned",
		zap.Int("rows", rows),
		zap.Bool("matched", found))
	return found, nil
}

func (v *Verifier) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", ErrFetchFailed, err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > v.maxBodyBytes {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrFetchFailed, v.maxBodyBytes)
	}
	return string(data), nil
}

// MatchRows scans newline separated rows of comma separated fields and reports
// whether any row has id as its first field and key as its second. onRow, if
// not nil, is called for every row inspected.
func MatchRows(table, id, key string, onRow func()) bool {
	id = Normalize(id)
	key = Normalize(key)

	for _, line := range strings.Split(table, "\n") {
		if onRow != nil {
			onRow()
		}
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		if Normalize(fields[0]) == id && Normalize(fields[1]) == key {
			return true
		}
	}
	return false
}

// Normalize trims surrounding whitespace and one pair of enclosing double quotes.
func Normalize(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		field = field[1 : len(field)-1]
	}
	return field
}
