package voice

import "time"

// clockTimer is a one-shot timer whose Stop is safe to call after fire.
type clockTimer struct {
	t *time.Timer
}

func newClockTimer(d time.Duration, fn func()) *clockTimer {
	return &clockTimer{t: time.AfterFunc(d, fn)}
}

func (c *clockTimer) Stop() {
	if c.t != nil {
		c.t.Stop()
	}
}
