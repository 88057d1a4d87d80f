package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDoSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	exec := New(Config{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, zap.NewNop())
	resp, err := exec.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []byte("hello"), resp.Body)
}

func TestDoExhaustsRetries(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec := New(Config{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, zap.NewNop())
	_, err := exec.Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	// One initial attempt plus two retries.
	require.Equal(t, int64(3), attempts.Load())
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	exec := New(Config{Timeout: time.Second, MaxRetries: 2, InitialBackoff: time.Millisecond}, zap.NewNop())
	resp, err := exec.Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), resp.Body)
	require.Equal(t, int64(3), attempts.Load())
}

func TestBackoffDoubles(t *testing.T) {
	t.Parallel()

	exec := New(Config{InitialBackoff: 100 * time.Millisecond}, zap.NewNop())
	require.Equal(t, 100*time.Millisecond, exec.backoff(0))
	require.Equal(t, 200*time.Millisecond, exec.backoff(1))
	require.Equal(t, 400*time.Millisecond, exec.backoff(2))
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := New(Config{Timeout: time.Second, MaxRetries: 5, InitialBackoff: time.Hour}, zap.NewNop())
	_, err := exec.Do(ctx, Request{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAgentRotationIsRoundRobin(t *testing.T) {
	t.Parallel()

	exec := New(Config{}, zap.NewNop())
	first := exec.NextAgent()
	seen := map[string]bool{first: true}
	for i := 1; i < len(userAgents); i++ {
		seen[exec.NextAgent()] = true
	}
	require.Len(t, seen, len(userAgents))
	// The pool wraps around after a full cycle.
	require.Equal(t, first, exec.NextAgent())
}
