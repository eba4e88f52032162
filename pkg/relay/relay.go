// Package relay streams one large remote resource (a file download, a CSV
// export) to the caller's sink, following redirects itself so it can tell
// a redirect hop from the real payload before forwarding any bytes.
package relay

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
	"github.com/vizydrop/gallery/pkg/logger"
	"github.com/vizydrop/gallery/pkg/metrics"
)

// legState tracks where one request leg is in its lifecycle. The state is
// owned by the leg, so concurrent relays never interfere.
type legState int

const (
	awaitingHeaders legState = iota
	streamingBody
	redirecting
	failed
)

// Options bounds one relay operation.
type Options struct {
	// Deadline bounds the whole relay, redirects included. Zero means 30s.
	Deadline time.Duration
	// MaxRedirects caps the redirect chain. Zero means 10.
	MaxRedirects int
}

// StreamingRelay fetches a single resource and forwards its body chunks to
// a sink as they arrive. Memory use is bounded to one chunk regardless of
// resource size.
type StreamingRelay struct {
	client  *clients.HTTPClient
	signer  auth.Signer
	account *auth.Account
	logger  *zap.Logger
}

// NewStreamingRelay creates a relay bound to one account and signer.
func NewStreamingRelay(client *clients.HTTPClient, signer auth.Signer, account *auth.Account, log *zap.Logger) *StreamingRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamingRelay{
		client:  client,
		signer:  signer,
		account: account,
		logger:  log,
	}
}

// Relay streams the resource at req into sink. Redirect responses forward
// zero bytes; only the terminal content response streams. Deadline expiry
// is a hard error here, unlike paged fetches, because half a file is not a
// usable partial result.
func (r *StreamingRelay) Relay(ctx context.Context, req *clients.SignedRequest, sink io.Writer, opts Options) error {
	if opts.Deadline <= 0 {
		opts.Deadline = 30 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Deadline)
	defer cancel()

	connector := connectorLabel(ctx)

	// The first leg is signed; redirect targets are typically pre-signed
	// CDN URLs that must not carry the provider Authorization header.
	signed, err := r.signer.Sign(ctx, r.account, req)
	if err != nil {
		return err
	}

	var totalBytes int64
	for hop := 0; ; hop++ {
		if hop > opts.MaxRedirects {
			return errors.New(errors.ErrorTypeConnection, "too many redirects while relaying")
		}

		state := awaitingHeaders
		var location string
		var status int

		handler := clients.StreamHandler{
			OnHeaders: func(statusCode int, header http.Header) bool {
				status = statusCode
				switch {
				case statusCode >= 200 && statusCode < 300:
					state = streamingBody
					return true
				case statusCode >= 300 && statusCode < 400:
					state = redirecting
					location = header.Get("Location")
					return false
				default:
					state = failed
					return false
				}
			},
			OnChunk: func(chunk []byte) error {
				if _, err := sink.Write(chunk); err != nil {
					return err
				}
				totalBytes += int64(len(chunk))
				metrics.RelayBytes.WithLabelValues(connector).Add(float64(len(chunk)))
				return nil
			},
		}

		if _, err := r.client.Stream(ctx, signed, handler); err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "relay deadline exceeded")
			}
			return err
		}

		switch state {
		case streamingBody:
			r.logger.Debug("relay complete",
				zap.Int("hops", hop),
				zap.Int64("bytes", totalBytes))
			return nil
		case redirecting:
			if location == "" {
				return errors.New(errors.ErrorTypeProvider, "redirect response without Location header")
			}
			signed = clients.NewSignedRequest("GET", location)
		default:
			return errors.NewProviderError(status, "provider rejected relay request")
		}
	}
}

func connectorLabel(ctx context.Context) string {
	if name, ok := ctx.Value(logger.ConnectorKey).(string); ok && name != "" {
		return name
	}
	return "unknown"
}
