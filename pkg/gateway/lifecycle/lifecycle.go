package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lifecycle is the process state shared across handlers: the draining flag
// used by readiness and the set of open live sessions that shutdown must
// close.
type Lifecycle struct {
	draining atomic.Bool

	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

// SessionHandle lets shutdown reach a live session.
type SessionHandle struct {
	// Cancel ends the session. It must not block on the session's teardown.
	Cancel func()
	// Notify tells the browser why the session is about to end.
	Notify func(code, message string) error
}

type trackedSession struct {
	handle SessionHandle
	once   sync.Once
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Register tracks a live session until the returned func is called. A second
// registration under the same id replaces the first.
func (l *Lifecycle) Register(sessionID string, h SessionHandle) (unregister func()) {
	if l == nil {
		return func() {}
	}

	entry := &trackedSession{handle: h}

	l.mu.Lock()
	if l.sessions == nil {
		l.sessions = make(map[string]*trackedSession)
	}
	old := l.sessions[sessionID]
	l.sessions[sessionID] = entry
	l.wg.Add(1)
	l.mu.Unlock()

	if old != nil {
		l.unregister(sessionID, old)
	}

	return func() { l.unregister(sessionID, entry) }
}

func (l *Lifecycle) unregister(sessionID string, entry *trackedSession) {
	entry.once.Do(func() {
		l.mu.Lock()
		if l.sessions[sessionID] == entry {
			delete(l.sessions, sessionID)
		}
		l.mu.Unlock()
		l.wg.Done()
	})
}

// Sessions returns the number of open live sessions.
func (l *Lifecycle) Sessions() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *Lifecycle) handles() []SessionHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SessionHandle, 0, len(l.sessions))
	for _, entry := range l.sessions {
		out = append(out, entry.handle)
	}
	return out
}

// NotifyAll sends code/message to every open session, best effort.
func (l *Lifecycle) NotifyAll(code, message string) (sent int) {
	if l == nil {
		return 0
	}
	for _, h := range l.handles() {
		if h.Notify == nil {
			continue
		}
		_ = h.Notify(code, message)
		sent++
	}
	return sent
}

// CancelAll cancels every open session.
func (l *Lifecycle) CancelAll() (canceled int) {
	if l == nil {
		return 0
	}
	for _, h := range l.handles() {
		if h.Cancel == nil {
			continue
		}
		h.Cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered or ctx ends.
func (l *Lifecycle) Wait(ctx context.Context) bool {
	if l == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
