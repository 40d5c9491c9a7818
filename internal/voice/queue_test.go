package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestPersistQueueRunsInOrder(t *testing.T) {
	q := NewPersistQueue(testLogger())

	var mu sync.Mutex
	var order []int

	// A slow first op must not reorder the ones behind it.
	q.Enqueue(func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
		return nil
	})
	q.Enqueue(func(ctx context.Context) error {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		return nil
	})
	q.Enqueue(func(ctx context.Context) error {
		mu.Lock()
		order = append(order, 3)
		mu.Unlock()
		return nil
	})

	q.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestPersistQueueContinuesAfterFailure(t *testing.T) {
	q := NewPersistQueue(testLogger())

	var ran bool
	q.Enqueue(func(ctx context.Context) error {
		return errors.New("store down")
	})
	q.Enqueue(func(ctx context.Context) error {
		ran = true
		return nil
	})

	q.Flush()
	if !ran {
		t.Fatal("op after a failed one never ran")
	}
}

func TestPersistQueueEnqueueDoesNotBlock(t *testing.T) {
	q := NewPersistQueue(testLogger())

	release := make(chan struct{})
	q.Enqueue(func(ctx context.Context) error {
		<-release
		return nil
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Enqueue(func(ctx context.Context) error { return nil })
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked behind a running op")
	}
	close(release)
	q.Flush()
}
