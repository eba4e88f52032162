package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
)

// RetryPending re-issues a fetch while the provider answers 202 Accepted,
// meaning results are still being computed server side. Retries are
// bounded with a fixed delay; exhausting them is a timeout-class error.
func RetryPending(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (*clients.Response, error)) (*clients.Response, error) {
	if attempts <= 0 {
		attempts = 10
	}

	for i := 0; i < attempts; i++ {
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusAccepted {
			return resp, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout,
				"canceled while waiting for provider to finish computing")
		}
	}

	return nil, errors.Newf(errors.ErrorTypeTimeout,
		"provider still computing results after %d attempts", attempts)
}
