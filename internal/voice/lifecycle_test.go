package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dallosh/livedesk/internal/utils"
)

func newTestManager(tr Transport, supported bool) (*Manager, *AudioController) {
	audio := NewAudioController(testLogger())
	cfg := Config{
		ProbeInitialDelay: 10 * time.Millisecond,
		ProbeInterval:     10 * time.Millisecond,
		ProbeMaxAttempts:  50,
	}
	return NewManager(cfg, tr, NewSoftDevices(supported), audio, testLogger()), audio
}

func TestManagerConnectLifecycle(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(tr, true)

	if m.State() != StateIdle {
		t.Fatalf("initial state = %v", m.State())
	}
	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("state after connect = %v", m.State())
	}
}

func TestManagerRejectsSecondConnect(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(tr, true)

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"})
	if !utils.IsCode(err, utils.CodeAlreadyConnected) {
		t.Fatalf("want CodeAlreadyConnected, got %v", err)
	}
	tr.mu.Lock()
	calls := tr.connectCalls
	tr.mu.Unlock()
	if calls != 1 {
		t.Fatalf("transport dialed %d times, want 1", calls)
	}
}

func TestManagerUnsupportedDevices(t *testing.T) {
	m, _ := newTestManager(newFakeTransport(), false)

	err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"})
	if !utils.IsCode(err, utils.CodeUnsupported) {
		t.Fatalf("want CodeUnsupported, got %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}
}

func TestManagerConnectFailureReturnsToIdle(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("refused")
	m, _ := newTestManager(tr, true)

	err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("want CodeUnavailable, got %v", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}
}

func TestManagerDisconnectIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(tr, true)

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Disconnect(context.Background()); err != nil {
			t.Fatalf("disconnect #%d: %v", i+1, err)
		}
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}
	if tr.disconnectCount() != 1 {
		t.Fatalf("transport disconnected %d times, want 1", tr.disconnectCount())
	}
}

func TestManagerTransitionsFireOnce(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(tr, true)

	ch, cancel := m.Transitions().Subscribe()
	defer cancel()

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = m.Disconnect(context.Background())
	_ = m.Disconnect(context.Background()) // repeat must not re-publish

	want := []ConnectionState{StateConnecting, StateConnected, StateDisconnecting, StateIdle}
	for i, w := range want {
		select {
		case got := <-ch:
			if got != w {
				t.Fatalf("transition %d = %v, want %v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing transition %d (%v)", i, w)
		}
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra transition %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManagerReadinessProbe(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(tr, true)

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ready := m.Ready()
	if ready == nil {
		t.Fatal("ready channel missing after connect")
	}
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("probe never confirmed readiness")
	}

	tr.mu.Lock()
	pings := 0
	for _, name := range tr.clientMsgs {
		if name == "ping" {
			pings++
		}
	}
	micSignals := len(tr.micSignals)
	tr.mu.Unlock()
	if pings == 0 {
		t.Fatal("probe never pinged")
	}
	if micSignals == 0 {
		t.Fatal("probe never resynced the mic")
	}
}

func TestManagerDisconnectReleasesReadyWaiters(t *testing.T) {
	tr := newFakeTransport()
	cfg := Config{
		ProbeInitialDelay: time.Hour, // probe never gets to confirm
		ProbeInterval:     time.Hour,
		ProbeMaxAttempts:  1,
	}
	m := NewManager(cfg, tr, NewSoftDevices(true), NewAudioController(testLogger()), testLogger())

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ready := m.Ready()
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready waiter stranded after disconnect")
	}
}

func TestManagerProbeRetriesUntilSuccess(t *testing.T) {
	tr := newFakeTransport()
	tr.clientMsgErr = errors.New("not listening yet")
	m, _ := newTestManager(tr, true)

	if err := m.Connect(context.Background(), ConnectRequest{SessionID: "s1"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ready := m.Ready()

	// Let a couple of attempts fail, then let the ping through.
	time.Sleep(25 * time.Millisecond)
	tr.mu.Lock()
	tr.clientMsgErr = nil
	tr.mu.Unlock()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("probe never recovered")
	}
}
