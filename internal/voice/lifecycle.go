package voice

import (
	"context"
	"sync"
	"time"

	"github.com/dallosh/livedesk/internal/realtime"
	"github.com/dallosh/livedesk/internal/utils"
	"github.com/sirupsen/logrus"
)

// Manager drives the connection lifecycle to the agent service. It is
// safe for concurrent use; each successful Connect starts a new epoch and
// Disconnect ends it, so a connect result that lands after a disconnect
// cannot resurrect the session.
type Manager struct {
	mu    sync.Mutex
	state ConnectionState
	epoch uint64

	transport Transport
	devices   MediaDevices
	audio     *AudioController
	cfg       Config
	log       *logrus.Logger

	transitions *realtime.Bus[ConnectionState]

	probeCancel context.CancelFunc
	readyCh     chan struct{}
	readyClosed bool
}

func NewManager(cfg Config, transport Transport, devices MediaDevices, audio *AudioController, log *logrus.Logger) *Manager {
	return &Manager{
		state:       StateIdle,
		transport:   transport,
		devices:     devices,
		audio:       audio,
		cfg:         withDefaults(cfg),
		log:         log,
		transitions: realtime.NewBus[ConnectionState](8),
	}
}

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transitions exposes lifecycle state changes. Each transition is
// published exactly once.
func (m *Manager) Transitions() *realtime.Bus[ConnectionState] {
	return m.transitions
}

// Ready is closed once the readiness probe has confirmed the data channel
// after the current connect. Nil while idle.
func (m *Manager) Ready() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readyCh
}

// Connect dials the agent service. A second call while connecting or
// connected is rejected with CodeAlreadyConnected so the caller can treat
// it as a benign skip.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) error {
	const op = "Manager.Connect"

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return utils.E(utils.CodeAlreadyConnected, op, "connection already in progress", nil)
	}
	if !m.devices.Supported() {
		m.mu.Unlock()
		return utils.E(utils.CodeUnsupported, op, "peer does not support realtime media", nil)
	}
	m.epoch++
	myEpoch := m.epoch
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err := m.transport.Connect(dialCtx, req)
	cancel()

	m.mu.Lock()
	if m.epoch != myEpoch {
		// Disconnect won the race; drop the late connection.
		m.mu.Unlock()
		if err == nil {
			_ = m.transport.Disconnect(context.Background())
		}
		return utils.E(utils.CodeUnavailable, op, "connection superseded", nil)
	}
	if err != nil {
		m.setStateLocked(StateIdle)
		m.mu.Unlock()
		return utils.E(utils.CodeUnavailable, op, "agent service unreachable", err)
	}
	m.setStateLocked(StateConnected)
	m.readyCh = make(chan struct{})
	m.readyClosed = false
	ready := m.readyCh

	probeCtx, probeCancel := context.WithCancel(context.Background())
	m.probeCancel = probeCancel
	m.mu.Unlock()

	mic, micErr := m.devices.Microphone()
	if micErr != nil {
		m.log.WithError(micErr).Warn("microphone unavailable, continuing without capture")
		mic = nil
	}
	if err := m.audio.Attach(mic, m.devices.Speaker(), m.transport); err != nil {
		m.log.WithError(err).Warn("attach audio failed")
	}

	go m.probeReadiness(probeCtx, ready)
	return nil
}

// Disconnect tears the connection down. Idempotent: disconnecting an idle
// manager is a no-op, and transport errors do not prevent local cleanup.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	wasConnecting := m.state == StateConnecting
	m.setStateLocked(StateDisconnecting)
	if m.probeCancel != nil {
		m.probeCancel()
		m.probeCancel = nil
	}
	// Release anyone blocked on Ready(); the connection is gone.
	if m.readyCh != nil && !m.readyClosed {
		close(m.readyCh)
	}
	m.readyCh = nil
	m.readyClosed = false
	m.mu.Unlock()

	m.audio.Detach()

	if !wasConnecting {
		if err := m.transport.Disconnect(ctx); err != nil {
			m.log.WithError(err).Warn("transport disconnect failed, cleaning up anyway")
		}
	}

	m.mu.Lock()
	m.setStateLocked(StateIdle)
	m.mu.Unlock()
	return nil
}

func (m *Manager) setStateLocked(s ConnectionState) {
	if m.state == s {
		return
	}
	m.state = s
	m.transitions.Publish(s)
}

// probeReadiness confirms the data channel actually carries messages.
// The first frames after connect can be dropped by the remote side, so
// it re-applies the mic state and sends a ping until one goes through.
func (m *Manager) probeReadiness(ctx context.Context, ready chan struct{}) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.ProbeInitialDelay):
	}

	for attempt := 1; attempt <= m.cfg.ProbeMaxAttempts; attempt++ {
		if err := m.audio.Resync(ctx); err != nil {
			m.log.WithError(err).WithField("attempt", attempt).Debug("readiness probe: mic resync failed")
		} else if err := m.transport.SendClientMessage(ctx, "ping", nil); err == nil {
			m.log.WithField("attempts", attempt).Debug("data channel ready")
			m.confirmReady(ready)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.ProbeInterval):
		}
	}
	m.log.Warn("data channel never confirmed ready")
}

// confirmReady closes the ready channel for the connect that started this
// probe. If a disconnect already superseded it, the channel was closed
// there and this is a no-op.
func (m *Manager) confirmReady(ready chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readyCh == ready && !m.readyClosed {
		close(ready)
		m.readyClosed = true
	}
}
