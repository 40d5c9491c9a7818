package voice

import "sync"

// MicTrack is the local microphone capture track.
type MicTrack interface {
	SetEnabled(enabled bool) error
	Enabled() bool
}

// Speaker is the local playback sink. Muting is purely local and is never
// signalled to the agent service.
type Speaker interface {
	SetMuted(muted bool) error
	Muted() bool
}

// MediaDevices abstracts the peer's media capabilities.
type MediaDevices interface {
	Supported() bool
	Microphone() (MicTrack, error)
	Speaker() Speaker
}

// SoftDevices mirrors the state of a remote peer's media in-process. The
// actual capture and playback happen on the peer; this side only tracks
// and forwards the desired state.
type SoftDevices struct {
	supported bool
	mic       *softTrack
	speaker   *softSpeaker
}

func NewSoftDevices(supported bool) *SoftDevices {
	return &SoftDevices{
		supported: supported,
		mic:       &softTrack{},
		speaker:   &softSpeaker{muted: true},
	}
}

func (d *SoftDevices) Supported() bool { return d.supported }

func (d *SoftDevices) Microphone() (MicTrack, error) { return d.mic, nil }

func (d *SoftDevices) Speaker() Speaker { return d.speaker }

type softTrack struct {
	mu      sync.Mutex
	enabled bool
}

func (t *softTrack) SetEnabled(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	return nil
}

func (t *softTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

type softSpeaker struct {
	mu    sync.Mutex
	muted bool
}

func (s *softSpeaker) SetMuted(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
	return nil
}

func (s *softSpeaker) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}
