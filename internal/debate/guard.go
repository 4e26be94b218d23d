package debate

import "sync"

// inflightGuard short-circuits obviously redundant concurrent calls per
// session. It is an in-process optimization only — cross-process safety
// comes from the store's conditional writes, never from this guard.
type inflightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{active: make(map[string]struct{})}
}

// tryAcquire marks a session as having work in flight. Returns false if
// it already does.
func (g *inflightGuard) tryAcquire(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[sessionID]; busy {
		return false
	}
	g.active[sessionID] = struct{}{}
	return true
}

// release clears the in-flight mark.
func (g *inflightGuard) release(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, sessionID)
}
