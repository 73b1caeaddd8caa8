package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pitch-deck/internal/credentials"
)

func newVerifyCmd() *cobra.Command {
	var loginID string

	cmd := &cobra.Command{
		Use:   "verify --id LOGIN_ID",
		Short: "Check one login against the credential table",
		Long: `verify fetches the credential table once and reports whether the pair matches.
The access key is read from the first line of stdin so it never shows up in
shell history. Exit status is non-zero on a mismatch or a fetch failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			key, err := readKey(cmd.InOrStdin())
			if err != nil {
				return err
			}

			verifier := credentials.NewVerifier(credentials.Options{
				URL:          cfg.Credentials.URL,
				Timeout:      cfg.Credentials.FetchTimeout.Duration,
				MaxBodyBytes: cfg.Credentials.MaxBodyBytes,
			}, logger)

			ok, err := verifier.Verify(cmd.Context(), loginID, key)
			if err != nil {
				return fmt.Errorf("credential check failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "%s: rejected\n", loginID)
				return errRejected
			}
			fmt.Fprintf(out, "%s: accepted\n", loginID)
			return nil
		},
	}
	cmd.Flags().StringVar(&loginID, "id", "", "login id to check")
	cmd.MarkFlagRequired("id")
	return cmd
}

func readKey(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read access key: %w", err)
	}
	key := strings.TrimRight(line, "\r\n")
	if key == "" {
		return "", fmt.Errorf("access key is required on stdin")
	}
	return key, nil
}
