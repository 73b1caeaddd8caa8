package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// closeTimeout bounds how long Close waits for queued events to reach the server.
const closeTimeout = 5 * time.Second

// NATSPublisher publishes events to NATS subjects as JSON envelopes.
type NATSPublisher struct {
	conn      *nats.Conn
	closed    chan struct{}
	closeOnce sync.Once
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	p := &NATSPublisher{closed: make(chan struct{})}
	defaults := []nats.Option{
		nats.Name("pitch-deck"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DrainTimeout(closeTimeout),
	}
	opts = append(append(defaults, opts...), nats.ClosedHandler(func(*nats.Conn) {
		p.closeOnce.Do(func() { close(p.closed) })
	}))

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	p.conn = nc
	return p, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(topic, data)
}

// Flush waits until the server has processed all published messages.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

// Close flushes queued events, drains the connection and waits until it is
// closed. Calling it again is a no-op.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() || p.conn.IsDraining() {
		return nil
	}

	var errs []error
	if err := p.conn.FlushTimeout(closeTimeout); err != nil {
		errs = append(errs, fmt.Errorf("flushing NATS events: %w", err))
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return errors.Join(append(errs, fmt.Errorf("draining NATS connection: %w", err))...)
	}

	select {
	case <-p.closed:
	case <-time.After(closeTimeout + time.Second):
		p.conn.Close()
		errs = append(errs, fmt.Errorf("draining NATS connection: timed out after %s", closeTimeout))
	}
	return errors.Join(errs...)
}
