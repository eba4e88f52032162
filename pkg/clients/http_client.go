// Package clients provides the shared HTTP client used by all connectors,
// with connection pooling, rate limiting and circuit breaking.
package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/logger"
	"github.com/vizydrop/gallery/pkg/metrics"
	"github.com/vizydrop/gallery/pkg/pool"
)

// connectorFromContext resolves the metrics connector label from the
// request context, defaulting to "unknown".
func connectorFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(logger.ConnectorKey).(string); ok && name != "" {
		return name
	}
	return "unknown"
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `json:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `json:"response_header_timeout"`
	RequestTimeout        time.Duration `json:"request_timeout"`
	KeepAlive             time.Duration `json:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool   `json:"insecure_skip_verify"`
	TLSMinVersion      uint16 `json:"tls_min_version"`

	// Rate limiting (requests per second, 0 = unlimited)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	SuccessThreshold      int           `json:"success_threshold"`
	BreakerTimeout        time.Duration `json:"breaker_timeout"`

	// UserAgent sent when the signer has not set one
	UserAgent string `json:"user_agent"`
}

// DefaultHTTPConfig returns production defaults.
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		RequestTimeout:        30 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		RateLimit:             0,
		RateBurst:             10,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      3,
		BreakerTimeout:        30 * time.Second,
		UserAgent:             "Vizydrop-AppsGallery/1.0",
	}
}

// HTTPClient is the shared outbound client. Fetch buffers one response;
// Stream hands headers and body chunks to callbacks without following
// redirects, which lets the streaming relay intercept them.
type HTTPClient struct {
	config    *HTTPConfig
	logger    *zap.Logger
	client    *http.Client
	streaming *http.Client
	transport *http.Transport

	totalRequests  int64
	failedRequests int64

	circuitBreaker *CircuitBreaker
	rateLimiter    *TokenBucketRateLimiter
}

// NewHTTPClient creates the shared HTTP client.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	c.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // G402: operator opt-in
			MinVersion:         config.TLSMinVersion,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			c.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	c.client = &http.Client{
		Transport: c.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New(errors.ErrorTypeConnection, "too many redirects")
			}
			return nil
		},
	}

	// The streaming client never follows redirects; the relay's state
	// machine decides what to do with a Location header.
	c.streaming = &http.Client{
		Transport: c.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if config.RateLimit > 0 {
		c.rateLimiter = NewTokenBucketRateLimiter(config.RateLimit, config.RateBurst)
	}

	if config.CircuitBreakerEnabled {
		c.circuitBreaker = NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: config.FailureThreshold,
			SuccessThreshold: config.SuccessThreshold,
			Timeout:          config.BreakerTimeout,
		}, c.logger)
	}

	return c
}

// Fetch performs a buffered request from a signed descriptor. The response
// body is fully read; non-2xx responses are returned without error so that
// callers can decide the error semantics (validate vs get_data).
func (c *HTTPClient) Fetch(ctx context.Context, req *SignedRequest) (*Response, error) {
	connector := connectorFromContext(ctx)

	if err := c.admit(ctx); err != nil {
		return nil, err
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewRequestTimer(connector, req.Method)

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}

	resp, err := c.client.Do(httpReq)
	timer.Stop()
	if err != nil {
		c.recordFailure(connector, req.Method)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(connector, req.Method)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read response body")
	}

	c.recordOutcome(connector, req.Method, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// StreamHandler receives the response of one streaming request leg.
// OnHeaders is called once when headers arrive; returning false stops body
// delivery for this leg (chunks are drained and discarded). OnChunk is
// called for each body chunk while delivery is on.
type StreamHandler struct {
	OnHeaders func(statusCode int, header http.Header) (deliver bool)
	OnChunk   func(chunk []byte) error
}

// Stream performs one request leg without following redirects, invoking the
// handler callbacks as the response arrives. The returned response carries
// headers only; the body has been consumed through the handler.
func (c *HTTPClient) Stream(ctx context.Context, req *SignedRequest, handler StreamHandler) (*Response, error) {
	connector := connectorFromContext(ctx)

	if err := c.admit(ctx); err != nil {
		return nil, err
	}

	atomic.AddInt64(&c.totalRequests, 1)
	timer := metrics.NewRequestTimer(connector, req.Method)

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request")
	}

	resp, err := c.streaming.Do(httpReq)
	if err != nil {
		timer.Stop()
		c.recordFailure(connector, req.Method)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	deliver := true
	if handler.OnHeaders != nil {
		deliver = handler.OnHeaders(resp.StatusCode, resp.Header)
	}

	chunk := pool.GetChunk()
	defer pool.PutChunk(chunk)
	buf := *chunk
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 && deliver && handler.OnChunk != nil {
			if err := handler.OnChunk(buf[:n]); err != nil {
				timer.Stop()
				c.recordFailure(connector, req.Method)
				return nil, errors.Wrap(err, errors.ErrorTypeData, "stream sink failed")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			timer.Stop()
			c.recordFailure(connector, req.Method)
			return nil, errors.Wrap(readErr, errors.ErrorTypeConnection, "stream read failed")
		}
	}

	timer.Stop()
	c.recordOutcome(connector, req.Method, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}, nil
}

// admit applies rate limiting and circuit breaking before a request.
func (c *HTTPClient) admit(ctx context.Context) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			atomic.AddInt64(&c.failedRequests, 1)
			return errors.Wrap(err, errors.ErrorTypeRateLimit, "rate limit wait aborted")
		}
	}

	if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		return errors.New(errors.ErrorTypeConnection, "circuit breaker open")
	}

	return nil
}

func (c *HTTPClient) recordOutcome(connector, method string, statusCode int) {
	metrics.ProviderRequests.WithLabelValues(connector, method, statusLabel(statusCode)).Inc()
	if c.circuitBreaker != nil {
		if statusCode >= 500 {
			c.circuitBreaker.RecordFailure()
		} else {
			c.circuitBreaker.RecordSuccess()
		}
	}
}

func (c *HTTPClient) recordFailure(connector, method string) {
	atomic.AddInt64(&c.failedRequests, 1)
	metrics.ProviderRequests.WithLabelValues(connector, method, "error").Inc()
	if c.circuitBreaker != nil {
		c.circuitBreaker.RecordFailure()
	}
}

// newRequest builds a stdlib request from a signed descriptor.
func (c *HTTPClient) newRequest(ctx context.Context, req *SignedRequest) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if httpReq.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	return httpReq, nil
}

// StdClient exposes the buffered client for libraries that need a plain
// http.Client, such as the oauth2 token exchange.
func (c *HTTPClient) StdClient() *http.Client {
	return c.client
}

// Stats returns request counters.
func (c *HTTPClient) Stats() (total, failed int64) {
	return atomic.LoadInt64(&c.totalRequests), atomic.LoadInt64(&c.failedRequests)
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
