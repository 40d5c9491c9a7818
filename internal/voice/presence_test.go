package voice

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeConnection struct {
	mu          sync.Mutex
	state       ConnectionState
	disconnects int
}

func (f *fakeConnection) State() ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConnection) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.state = StateIdle
	return nil
}

func TestPresenceDisconnectsOnAgentJoin(t *testing.T) {
	conn := &fakeConnection{state: StateConnected}

	joined := false
	var mu sync.Mutex
	check := func(ctx context.Context) (bool, string, error) {
		mu.Lock()
		defer mu.Unlock()
		return joined, "agent-7", nil
	}

	p := NewPresenceCoordinator(10*time.Millisecond, check, conn, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	conn.mu.Lock()
	if conn.disconnects != 0 {
		conn.mu.Unlock()
		t.Fatal("disconnected before any agent joined")
	}
	conn.mu.Unlock()

	mu.Lock()
	joined = true
	mu.Unlock()

	deadline := time.After(time.Second)
	for {
		conn.mu.Lock()
		n := conn.disconnects
		conn.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("agent join never triggered a disconnect")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPresenceNeverReconnects(t *testing.T) {
	conn := &fakeConnection{state: StateConnected}

	var mu sync.Mutex
	joined := true
	check := func(ctx context.Context) (bool, string, error) {
		mu.Lock()
		defer mu.Unlock()
		return joined, "agent-7", nil
	}

	p := NewPresenceCoordinator(10*time.Millisecond, check, conn, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	joined = false // agent leaves
	mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	if conn.State() != StateIdle {
		t.Fatal("coordinator must not reconnect on its own")
	}
	conn.mu.Lock()
	n := conn.disconnects
	conn.mu.Unlock()
	if n != 1 {
		t.Fatalf("disconnect called %d times, want 1", n)
	}
}

func TestPresenceReportsChanges(t *testing.T) {
	conn := &fakeConnection{state: StateIdle}

	var mu sync.Mutex
	var reports []bool
	onChange := func(joined bool, agentID string) {
		mu.Lock()
		reports = append(reports, joined)
		mu.Unlock()
	}
	check := func(ctx context.Context) (bool, string, error) {
		return true, "agent-1", nil
	}

	p := NewPresenceCoordinator(10*time.Millisecond, check, conn, onChange, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	time.Sleep(35 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 || !reports[0] {
		t.Fatalf("reports = %v, want immediate joined=true", reports)
	}
}
