package queue

import (
	"sync"

	"github.com/coursefetch/coursefetch/internal/domain"
	errpkg "github.com/coursefetch/coursefetch/internal/errors"
)

// TaskQueue is the unbounded producer/consumer boundary between metadata
// discovery and the download workers. Enqueue never blocks; Dequeue blocks
// until a task is available or the queue will never produce one again.
// Insertion order is preserved.
//
// The queue has two terminal transitions: Close, after which remaining tasks
// still drain, and Shutdown, after which Dequeue returns immediately even if
// tasks are pending (the interrupt path — pending tasks are simply not
// attempted).
type TaskQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []*domain.DownloadTask
	closed  bool
	stopped bool
}

func New() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a task to the back of the queue. It is safe to call from any
// goroutine and returns an error only if the queue was already closed.
func (q *TaskQueue) Enqueue(task *domain.DownloadTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.stopped {
		return errpkg.ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	return nil
}

// Dequeue blocks until a task is available and returns it. It returns
// ok=false once the queue is closed and drained, or immediately after
// Shutdown.
func (q *TaskQueue) Dequeue() (*domain.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed && !q.stopped {
		q.cond.Wait()
	}

	if q.stopped || len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true
}

// Close signals that no further tasks will be produced. Tasks already queued
// are still handed out.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Shutdown stops handing out tasks entirely. Tasks still in the queue are
// abandoned; callers blocked in Dequeue wake up with ok=false.
func (q *TaskQueue) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports the number of tasks currently waiting.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
