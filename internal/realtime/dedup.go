package realtime

import "sync"

// Dedup tracks which store notification ids were already applied to local
// state, scoped to one active session. The transport delivers at least
// once, so the same create/update may arrive more than once.
type Dedup struct {
	mu        sync.Mutex
	sessionID string
	seen      map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// Reset clears the seen set when the active session changes. Calling it
// with the current session id is a no-op.
func (d *Dedup) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sessionID == sessionID {
		return
	}
	d.sessionID = sessionID
	d.seen = make(map[string]struct{})
}

func (d *Dedup) ShouldProcess(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, dup := d.seen[id]
	return !dup
}

func (d *Dedup) MarkProcessed(id string) {
	if id == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = struct{}{}
}
