package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ClamdScanner streams files to a clamd daemon (INSTREAM).
type ClamdScanner struct {
	client *clamd.Clamd
}

var _ Scanner = (*ClamdScanner)(nil)

// NewClamdScanner takes an address such as "tcp://127.0.0.1:3310" or
// "unix:///run/clamav/clamd.ctl".
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

// Ping checks that the daemon answers.
func (c *ClamdScanner) Ping() error {
	if err := c.client.Ping(); err != nil {
		return fmt.Errorf("storage: clamd ping: %w", err)
	}
	return nil
}

// Scan returns ErrInfected if clamd reports a signature match.
func (c *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := c.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("storage: clamd scan: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				return fmt.Errorf("storage: clamd scan: %s %s", result.Status, result.Description)
			}
		}
	}
}
