package voice

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Op is one persistence operation.
type Op func(ctx context.Context) error

// PersistQueue runs persistence work off the event path so a slow store
// never stalls transcription. Ops run one at a time in enqueue order; a
// failed op is logged and the queue moves on.
type PersistQueue struct {
	mu       sync.Mutex
	ops      []Op
	draining bool
	wg       sync.WaitGroup

	opTimeout time.Duration
	log       *logrus.Logger
}

func NewPersistQueue(log *logrus.Logger) *PersistQueue {
	return &PersistQueue{
		opTimeout: 10 * time.Second,
		log:       log,
	}
}

// Enqueue adds an op and starts the drain goroutine if it is not already
// running. Never blocks.
func (q *PersistQueue) Enqueue(op Op) {
	if op == nil {
		return
	}
	q.mu.Lock()
	q.ops = append(q.ops, op)
	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	q.mu.Unlock()
}

func (q *PersistQueue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.ops) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), q.opTimeout)
		if err := op(ctx); err != nil {
			q.log.WithError(err).Warn("queued persistence op failed")
		}
		cancel()
	}
}

// Flush blocks until every op enqueued so far has run. Test helper and
// shutdown hook.
func (q *PersistQueue) Flush() {
	q.wg.Wait()
}

// Len reports how many ops are still waiting.
func (q *PersistQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
