package voice

import "sync"

// Registry holds the live engine for each active session. Engines are
// refcounted by the sockets using them: GetOrCreate takes a reference,
// Release drops one, and the engine is evicted when the last reference
// goes away.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	engine *Engine
	refs   int
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// GetOrCreate returns the session's engine, building one via factory on
// first use, and takes a reference. Every call must be paired with a
// Release.
func (r *Registry) GetOrCreate(sessionID string, factory func() *Engine) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[sessionID]
	if !ok {
		ent = &registryEntry{engine: factory()}
		r.entries[sessionID] = ent
	}
	ent.refs++
	return ent.engine
}

// Release drops one reference. When the last holder releases, the engine
// is removed and its pending persistence work is flushed. Callers are
// expected to have disconnected the engine's manager first.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	ent, ok := r.entries[sessionID]
	if ok {
		ent.refs--
		if ent.refs > 0 {
			r.mu.Unlock()
			return
		}
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()
	if ok {
		ent.engine.Queue().Flush()
	}
}
