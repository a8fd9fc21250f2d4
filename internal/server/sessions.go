package server

import (
	"context"
	"sync"
)

// sessionRegistry tracks the in-flight query per session. Starting a
// new query for a session cancels the previous one, the way a chat
// surface abandons a superseded question.
type sessionRegistry struct {
	mu       sync.Mutex
	inflight map[string]*inflightQuery
}

type inflightQuery struct {
	cancel context.CancelFunc
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{inflight: make(map[string]*inflightQuery)}
}

// begin registers a query for the session and cancels whatever was
// running under the same id. The returned release func must always be
// called; it frees the slot only if the query still owns it.
func (r *sessionRegistry) begin(parent context.Context, sessionID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	q := &inflightQuery{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.inflight[sessionID]; ok {
		prev.cancel()
	}
	r.inflight[sessionID] = q
	r.mu.Unlock()

	release := func() {
		cancel()
		r.mu.Lock()
		if r.inflight[sessionID] == q {
			delete(r.inflight, sessionID)
		}
		r.mu.Unlock()
	}
	return ctx, release
}

func (r *sessionRegistry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
