package voice

import (
	"context"
	"sync"
)

// fakeTransport scripts the agent service side of the wire.
type fakeTransport struct {
	mu sync.Mutex

	connectErr    error
	connectCalls  int
	disconnects   int
	micSignals    []bool
	micErr        error
	clientMsgs    []string
	clientMsgErr  error
	appendedTurns []Turn

	events chan Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 64)}
}

func (f *fakeTransport) Connect(ctx context.Context, req ConnectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return f.connectErr
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) Events() <-chan Event { return f.events }

func (f *fakeTransport) AppendTurn(ctx context.Context, t Turn, runImmediately bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendedTurns = append(f.appendedTurns, t)
	return nil
}

func (f *fakeTransport) SendClientMessage(ctx context.Context, name string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientMsgs = append(f.clientMsgs, name)
	return f.clientMsgErr
}

func (f *fakeTransport) EnableMic(ctx context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.micErr != nil {
		return f.micErr
	}
	f.micSignals = append(f.micSignals, enabled)
	return nil
}

func (f *fakeTransport) turns() []Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Turn, len(f.appendedTurns))
	copy(out, f.appendedTurns)
	return out
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}
