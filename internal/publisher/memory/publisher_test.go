package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "task-events", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "run-events", "done")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	events := pub.Events()
	require.Len(t, events, 2)
	require.Equal(t, "task-events", events[0].Topic)
	require.Equal(t, "run-events", events[1].Topic)

	events[0].Topic = "modified"
	require.Equal(t, "task-events", pub.Events()[0].Topic)
}

func TestPublisherConcurrentPublishes(t *testing.T) {
	t.Parallel()

	pub := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pub.Publish(context.Background(), "task-events", nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Len(t, pub.Events(), 16)
}
