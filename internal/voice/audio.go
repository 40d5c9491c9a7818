package voice

import (
	"context"
	"sync"

	"github.com/dallosh/livedesk/internal/utils"
	"github.com/sirupsen/logrus"
)

// AudioController owns the desired mic and speaker state. The state is
// kept across connections: while detached a toggle only updates the
// cache, and Attach applies the cache to the new devices right away.
type AudioController struct {
	mu        sync.Mutex
	state     AudioState
	mic       MicTrack
	speaker   Speaker
	transport Transport

	log *logrus.Logger
}

func NewAudioController(log *logrus.Logger) *AudioController {
	return &AudioController{
		state: AudioState{MicrophoneEnabled: true, SpeakerEnabled: true},
		log:   log,
	}
}

// Attach binds the controller to a live connection's devices and applies
// the cached state so the tracks come up matching what the user last set.
func (c *AudioController) Attach(mic MicTrack, speaker Speaker, transport Transport) error {
	const op = "AudioController.Attach"

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mic = mic
	c.speaker = speaker
	c.transport = transport

	if speaker != nil {
		if err := speaker.SetMuted(!c.state.SpeakerEnabled); err != nil {
			return utils.E(utils.CodeSyncFailed, op, "apply speaker state", err)
		}
	}
	if mic != nil {
		if err := mic.SetEnabled(c.state.MicrophoneEnabled); err != nil {
			return utils.E(utils.CodeSyncFailed, op, "apply mic state", err)
		}
	}
	return nil
}

// Detach drops the device bindings. The cached state survives.
func (c *AudioController) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mic = nil
	c.speaker = nil
	c.transport = nil
}

// SetMicrophone toggles the mic. Connected, both the local track and the
// remote transport must agree; if either side fails the local track is
// rolled back so they never diverge. Disconnected, only the cache moves.
func (c *AudioController) SetMicrophone(ctx context.Context, enabled bool) error {
	const op = "AudioController.SetMicrophone"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mic == nil || c.transport == nil {
		c.state.MicrophoneEnabled = enabled
		return nil
	}

	prev := c.state.MicrophoneEnabled
	if err := c.mic.SetEnabled(enabled); err != nil {
		return utils.E(utils.CodeSyncFailed, op, "set mic track", err)
	}
	if err := c.transport.EnableMic(ctx, enabled); err != nil {
		if rbErr := c.mic.SetEnabled(prev); rbErr != nil {
			c.log.WithError(rbErr).Warn("mic rollback failed")
		}
		return utils.E(utils.CodeSyncFailed, op, "signal mic to transport", err)
	}
	c.state.MicrophoneEnabled = enabled
	return nil
}

// SetSpeaker toggles playback. Purely local, nothing is signalled to the
// agent service.
func (c *AudioController) SetSpeaker(enabled bool) error {
	const op = "AudioController.SetSpeaker"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.speaker != nil {
		if err := c.speaker.SetMuted(!enabled); err != nil {
			return utils.E(utils.CodeSyncFailed, op, "set speaker", err)
		}
	}
	c.state.SpeakerEnabled = enabled
	return nil
}

// Resync re-applies the cached mic state to the track and transport. The
// readiness probe calls this because early writes can land before the
// remote side listens.
func (c *AudioController) Resync(ctx context.Context) error {
	const op = "AudioController.Resync"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mic == nil || c.transport == nil {
		return nil
	}
	if err := c.mic.SetEnabled(c.state.MicrophoneEnabled); err != nil {
		return utils.E(utils.CodeSyncFailed, op, "set mic track", err)
	}
	if err := c.transport.EnableMic(ctx, c.state.MicrophoneEnabled); err != nil {
		return utils.E(utils.CodeSyncFailed, op, "signal mic to transport", err)
	}
	return nil
}

func (c *AudioController) State() AudioState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *AudioController) MicEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.MicrophoneEnabled
}
