package realtime

import (
	"testing"
	"time"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	b := NewBus[string](4)
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish("hello")

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Fatalf("subscriber %d got %q", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received", i)
		}
	}
}

func TestBusSecondSubscriberDoesNotEvictFirst(t *testing.T) {
	b := NewBus[int](4)
	defer b.Close()

	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	_, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(42)

	select {
	case got := <-ch1:
		if got != 42 {
			t.Fatalf("got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("first subscriber lost its delivery")
	}
}

func TestBusCancelDetaches(t *testing.T) {
	b := NewBus[int](4)
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Fatal("cancelled channel should be closed")
	}
	b.Publish(1) // must not panic
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	b := NewBus[int](1)
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(1)
	b.Publish(2) // buffer full: dropped, not blocked

	if got := <-ch; got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected second delivery %d", got)
	case <-time.After(20 * time.Millisecond):
	}
}
