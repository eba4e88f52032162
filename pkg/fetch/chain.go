package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/metrics"
)

// ChainHandler processes one page of an ordered pagination chain. It
// returns the next cursor URI (empty terminates), or stop=true to cut the
// chain short once the caller has enough records.
type ChainHandler func(ctx context.Context, uri string, resp *clients.Response) (next string, stop bool, err error)

// FollowChain walks a single pagination chain serially. Unlike FetchAll
// there is exactly one active cursor, so provider response order is
// preserved end to end. Chronological listings (commits, issues) use this
// path.
func (f *PagedFetcher) FollowChain(ctx context.Context, seed string, opts Options, handler ChainHandler) (*Result, error) {
	if opts.Deadline <= 0 {
		opts.Deadline = 30 * time.Second
	}
	if opts.MaxQueued <= 0 {
		opts.MaxQueued = 500
	}
	if opts.BuildRequest == nil {
		opts.BuildRequest = func(uri string) *clients.SignedRequest {
			return clients.NewSignedRequest("GET", uri)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	connector := connectorLabel(ctx)
	metrics.FetchesInFlight.WithLabelValues(connector).Inc()
	defer metrics.FetchesInFlight.WithLabelValues(connector).Dec()

	result := &Result{Completed: true}
	uri := seed

	for uri != "" {
		if result.Pages >= opts.MaxQueued {
			f.logger.Warn("pagination chain exceeded page cap",
				zap.Int("pages", result.Pages))
			return nil, errors.Newf(errors.ErrorTypeTooManyItems,
				"pagination chain exceeded %d pages", opts.MaxQueued)
		}

		signed, err := f.signer.Sign(ctx, f.account, opts.BuildRequest(uri))
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Fetch(ctx, signed)
		if err != nil {
			if ctx.Err() != nil {
				result.Completed = false
				metrics.IncompleteFetches.WithLabelValues(connector).Inc()
				return result, nil
			}
			return nil, err
		}

		next, stop, err := handler(ctx, uri, resp)
		if err != nil {
			return nil, err
		}

		result.Pages++
		metrics.PagesFetched.WithLabelValues(connector).Inc()

		if stop {
			break
		}
		uri = next
	}

	return result, nil
}
