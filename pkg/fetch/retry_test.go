package fetch

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/errors"
)

func TestRetryPendingReturnsOnceComputed(t *testing.T) {
	var calls int64
	resp, err := RetryPending(context.Background(), 5, time.Millisecond,
		func(context.Context) (*clients.Response, error) {
			if atomic.AddInt64(&calls, 1) < 3 {
				return &clients.Response{StatusCode: http.StatusAccepted}, nil
			}
			return &clients.Response{StatusCode: http.StatusOK, Body: []byte("done")}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), calls)
}

func TestRetryPendingExhaustionIsTimeout(t *testing.T) {
	_, err := RetryPending(context.Background(), 3, time.Millisecond,
		func(context.Context) (*clients.Response, error) {
			return &clients.Response{StatusCode: http.StatusAccepted}, nil
		})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestRetryPendingHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryPending(ctx, 10, time.Minute,
		func(context.Context) (*clients.Response, error) {
			return &clients.Response{StatusCode: http.StatusAccepted}, nil
		})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}
