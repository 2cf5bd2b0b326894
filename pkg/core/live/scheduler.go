package live

import (
	"fmt"
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// Scheduler places output chunks back to back on an Output's clock.
// Each chunk starts at max(cursor, now) and advances the cursor by its
// duration.
type Scheduler struct {
	out Output

	mu      sync.Mutex
	cursor  time.Duration
	next    uint64
	handles map[uint64]Handle
}

// NewScheduler returns a scheduler for out with the cursor at zero.
func NewScheduler(out Output) *Scheduler {
	return &Scheduler{out: out, handles: make(map[uint64]Handle)}
}

// Schedule queues buf and returns its start position.
func (s *Scheduler) Schedule(buf audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := max(s.cursor, s.out.Now())
	id := s.next
	s.next++
	h, err := s.out.Schedule(buf, start, func() { s.ended(id) })
	if err != nil {
		return 0, fmt.Errorf("schedule output chunk: %w", err)
	}
	s.handles[id] = h
	s.cursor = start + buf.Duration()
	return start, nil
}

// Interrupt stops every scheduled buffer, forgets them and rewinds the
// cursor so the next chunk plays immediately. It returns how many buffers
// were stopped.
func (s *Scheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.handles)
	for id, h := range s.handles {
		h.Stop()
		delete(s.handles, id)
	}
	s.cursor = 0
	return n
}

// Cursor is the end of the last scheduled chunk.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Pending is the number of buffers scheduled or playing.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, id)
}
