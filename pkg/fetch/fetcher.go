// Package fetch implements the shared retrieval engine: a bounded-concurrency
// paged fetcher over discovered cursors, an ordered single-chain follower,
// and bounded retry for providers that answer 202 while computing results.
package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/logger"
	"github.com/vizydrop/gallery/pkg/metrics"
)

// PageHandler processes one fetched page. It folds records into the
// caller's accumulator and returns any newly discovered URIs (next-page
// cursors, per-item detail URIs) to enqueue. A returned error aborts the
// whole fetch.
type PageHandler func(ctx context.Context, uri string, resp *clients.Response) (next []string, err error)

// Options bounds one paged fetch.
type Options struct {
	// Concurrency caps simultaneous in-flight requests. Zero means 10.
	Concurrency int64
	// Deadline bounds the whole operation wall-clock. Zero means 30s.
	Deadline time.Duration
	// MaxQueued caps total discovered URIs. Exceeding it is a hard
	// error, not silent truncation. Zero means 500.
	MaxQueued int
	// BuildRequest customizes the outbound request per URI. Default is
	// a plain GET.
	BuildRequest func(uri string) *clients.SignedRequest
}

// Result reports what one paged fetch accomplished.
type Result struct {
	// Pages is the number of pages handled.
	Pages int
	// Completed is false when the deadline expired before the queue
	// drained; whatever the handler accumulated is still valid.
	Completed bool
}

// PagedFetcher drives a bounded worker pool over a queue of page URIs,
// deduplicating cursors so each URI is fetched at most once, and returning
// partial results when the deadline expires.
type PagedFetcher struct {
	client  *clients.HTTPClient
	signer  auth.Signer
	account *auth.Account
	logger  *zap.Logger
}

// NewPagedFetcher creates a fetcher bound to one account and signer.
func NewPagedFetcher(client *clients.HTTPClient, signer auth.Signer, account *auth.Account, log *zap.Logger) *PagedFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &PagedFetcher{
		client:  client,
		signer:  signer,
		account: account,
		logger:  log,
	}
}

// FetchAll walks every URI reachable from the seeds. Termination is
// queue-drain (all enqueued URIs handled) or deadline, whichever comes
// first. On deadline the result carries Completed=false and outstanding
// requests are abandoned.
func (f *PagedFetcher) FetchAll(ctx context.Context, seeds []string, opts Options, handler PageHandler) (*Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 10
	}
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

	opID := uuid.New().String()
	connector := connectorLabel(ctx)
	log := f.logger.With(
		zap.String("operation_id", opID),
		zap.Int("seeds", len(seeds)),
	)
	ctx = logger.ContextWithOperation(ctx, opID)

	ctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	run := &fetchRun{
		fetcher: f,
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		handler: handler,
		sem:     semaphore.NewWeighted(opts.Concurrency),
		seen:    make(map[string]struct{}),
		log:     log,
	}

	metrics.FetchesInFlight.WithLabelValues(connector).Inc()
	defer metrics.FetchesInFlight.WithLabelValues(connector).Dec()

	for _, seed := range seeds {
		if err := run.enqueue(seed); err != nil {
			break
		}
	}

	run.wg.Wait()

	if err := run.firstErr(); err != nil {
		return nil, err
	}

	result := &Result{
		Pages:     run.pagesDone(),
		Completed: ctx.Err() == nil,
	}
	if !result.Completed {
		metrics.IncompleteFetches.WithLabelValues(connector).Inc()
		log.Warn("paged fetch hit deadline, returning partial results",
			zap.Int("pages", result.Pages))
	} else {
		log.Debug("paged fetch drained", zap.Int("pages", result.Pages))
	}

	return result, nil
}

// fetchRun is the per-call state: the seen set, the outstanding-work join
// and the first hard error. It is discarded when FetchAll returns.
type fetchRun struct {
	fetcher *PagedFetcher
	ctx     context.Context
	cancel  context.CancelFunc
	opts    Options
	handler PageHandler
	sem     *semaphore.Weighted
	log     *zap.Logger

	wg sync.WaitGroup

	mu     sync.Mutex
	seen   map[string]struct{}
	queued int
	done   int
	err    error
}

// enqueue admits one URI. Duplicates are dropped so a cursor discovered by
// two pages is fetched once.
func (r *fetchRun) enqueue(uri string) error {
	r.mu.Lock()
	if _, dup := r.seen[uri]; dup {
		r.mu.Unlock()
		return nil
	}
	r.seen[uri] = struct{}{}
	r.queued++
	if r.queued > r.opts.MaxQueued {
		r.mu.Unlock()
		err := errors.Newf(errors.ErrorTypeTooManyItems,
			"discovered more than %d items", r.opts.MaxQueued)
		r.fail(err)
		return err
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go r.worker(uri)
	return nil
}

// worker fetches one URI under a semaphore permit.
func (r *fetchRun) worker(uri string) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		// Deadline expired while queued; the page is abandoned.
		return
	}
	defer r.sem.Release(1)

	if r.ctx.Err() != nil {
		return
	}

	req := r.opts.BuildRequest(uri)
	signed, err := r.fetcher.signer.Sign(r.ctx, r.fetcher.account, req)
	if err != nil {
		r.fail(err)
		return
	}

	resp, err := r.fetcher.client.Fetch(r.ctx, signed)
	if err != nil {
		if r.ctx.Err() != nil {
			return
		}
		r.fail(err)
		return
	}

	next, err := r.handler(r.ctx, uri, resp)
	if err != nil {
		r.fail(err)
		return
	}

	r.mu.Lock()
	r.done++
	r.mu.Unlock()
	metrics.PagesFetched.WithLabelValues(connectorLabel(r.ctx)).Inc()

	for _, n := range next {
		if n == "" {
			continue
		}
		if err := r.enqueue(n); err != nil {
			return
		}
	}
}

// fail records the first hard error and cancels the run.
func (r *fetchRun) fail(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *fetchRun) firstErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *fetchRun) pagesDone() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func connectorLabel(ctx context.Context) string {
	if name, ok := ctx.Value(logger.ConnectorKey).(string); ok && name != "" {
		return name
	}
	return "unknown"
}
