package politeness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 50})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "https://biz.example/contact"))
	}
	// Two paced waits at 50 rps is at least ~40ms.
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitDistinctHostsIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example/"))
	require.NoError(t, l.Wait(ctx, "https://b.example/"))
	require.NoError(t, l.Wait(ctx, "https://c.example/"))
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://slow.example/"))

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(cancelCtx, "https://slow.example/"))
}
