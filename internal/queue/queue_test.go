package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursefetch/coursefetch/internal/domain"
	errpkg "github.com/coursefetch/coursefetch/internal/errors"
)

func task(id int64) *domain.DownloadTask {
	return &domain.DownloadTask{
		AttachmentID: id,
		URL:          fmt.Sprintf("http://example.com/%d", id),
		RelPath:      fmt.Sprintf("course/file_%d.bin", id),
	}
}

func TestTaskQueue_PreservesInsertionOrder(t *testing.T) {
	q := New()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.Enqueue(task(i)))
	}
	q.Close()

	for i := int64(1); i <= 5; i++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, got.AttachmentID)
	}

	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestTaskQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New()

	got := make(chan *domain.DownloadTask)
	go func() {
		tk, ok := q.Dequeue()
		assert.True(t, ok)
		got <- tk
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before anything was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(task(7)))

	select {
	case tk := <-got:
		assert.Equal(t, int64(7), tk.AttachmentID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up after enqueue")
	}
}

func TestTaskQueue_CloseDrainsPendingTasks(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(task(1)))
	require.NoError(t, q.Enqueue(task(2)))

	q.Close()

	_, ok := q.Dequeue()
	assert.True(t, ok)
	_, ok = q.Dequeue()
	assert.True(t, ok)
	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestTaskQueue_ShutdownAbandonsPendingTasks(t *testing.T) {
	q := New()
	require.NoError(t, q.Enqueue(task(1)))
	require.NoError(t, q.Enqueue(task(2)))

	q.Shutdown()

	_, ok := q.Dequeue()
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())
}

func TestTaskQueue_ShutdownWakesBlockedConsumers(t *testing.T) {
	q := New()

	done := make(chan struct{})
	go func() {
		_, ok := q.Dequeue()
		assert.False(t, ok)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked consumer was not woken by Shutdown")
	}
}

func TestTaskQueue_EnqueueAfterCloseFails(t *testing.T) {
	q := New()
	q.Close()

	err := q.Enqueue(task(1))
	assert.ErrorIs(t, err, errpkg.ErrQueueClosed)
}

func TestTaskQueue_ConcurrentProducersAndConsumers(t *testing.T) {
	q := New()

	const producers = 4
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, q.Enqueue(task(int64(p*perProducer+i))))
			}
		}(p)
	}

	go func() {
		wg.Wait()
		q.Close()
	}()

	seen := make(map[int64]bool)
	var mu sync.Mutex
	var consumers sync.WaitGroup
	for c := 0; c < 3; c++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				tk, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[tk.AttachmentID] = true
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	assert.Len(t, seen, producers*perProducer)
}
