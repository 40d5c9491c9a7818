package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/dallosh/livedesk/internal/utils"
)

func TestAudioCachedToggleAppliesOnAttach(t *testing.T) {
	ctrl := NewAudioController(testLogger())

	// Toggle while detached: only the cache moves.
	if err := ctrl.SetMicrophone(context.Background(), false); err != nil {
		t.Fatalf("cached toggle: %v", err)
	}
	if err := ctrl.SetSpeaker(false); err != nil {
		t.Fatalf("cached toggle: %v", err)
	}

	devices := NewSoftDevices(true)
	mic, _ := devices.Microphone()
	spk := devices.Speaker()
	tr := newFakeTransport()

	if err := ctrl.Attach(mic, spk, tr); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if mic.Enabled() {
		t.Fatal("mic track should come up disabled")
	}
	if !spk.Muted() {
		t.Fatal("speaker should come up muted")
	}
}

func TestAudioMicRollbackOnTransportFailure(t *testing.T) {
	ctrl := NewAudioController(testLogger())
	devices := NewSoftDevices(true)
	mic, _ := devices.Microphone()
	tr := newFakeTransport()

	if err := ctrl.Attach(mic, devices.Speaker(), tr); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// mic is enabled by default after attach

	tr.micErr = errors.New("channel closed")
	err := ctrl.SetMicrophone(context.Background(), false)
	if !utils.IsCode(err, utils.CodeSyncFailed) {
		t.Fatalf("want CodeSyncFailed, got %v", err)
	}
	if !mic.Enabled() {
		t.Fatal("track must roll back to enabled")
	}
	if !ctrl.MicEnabled() {
		t.Fatal("cached state must not move on failure")
	}
}

func TestAudioSpeakerIsLocalOnly(t *testing.T) {
	ctrl := NewAudioController(testLogger())
	devices := NewSoftDevices(true)
	mic, _ := devices.Microphone()
	tr := newFakeTransport()

	if err := ctrl.Attach(mic, devices.Speaker(), tr); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := ctrl.SetSpeaker(false); err != nil {
		t.Fatalf("set speaker: %v", err)
	}

	tr.mu.Lock()
	signals := len(tr.micSignals)
	tr.mu.Unlock()
	if signals != 0 {
		t.Fatalf("speaker toggle must not touch the transport, saw %d mic signals", signals)
	}
	if ctrl.State().SpeakerEnabled {
		t.Fatal("speaker state not cached")
	}
}

func TestAudioStateSurvivesDetach(t *testing.T) {
	ctrl := NewAudioController(testLogger())
	devices := NewSoftDevices(true)
	mic, _ := devices.Microphone()
	tr := newFakeTransport()

	if err := ctrl.Attach(mic, devices.Speaker(), tr); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := ctrl.SetMicrophone(context.Background(), false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	ctrl.Detach()

	if ctrl.MicEnabled() {
		t.Fatal("mic state lost on detach")
	}

	// Reattach applies the surviving state.
	devices2 := NewSoftDevices(true)
	mic2, _ := devices2.Microphone()
	_ = mic2.SetEnabled(true)
	if err := ctrl.Attach(mic2, devices2.Speaker(), newFakeTransport()); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if mic2.Enabled() {
		t.Fatal("reattach must apply cached disabled state")
	}
}
