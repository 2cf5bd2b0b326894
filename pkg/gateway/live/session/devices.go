package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/gateway/live/protocol"
)

var errOutputClosed = errors.New("browser output closed")

// browserMicrophone turns binary socket frames into captured samples.
type browserMicrophone struct {
	mu      sync.Mutex
	capture *browserCapture
	buffer  int
}

func (m *browserMicrophone) Open(ctx context.Context, sampleRate int) (live.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capture = &browserCapture{frames: make(chan []float32, max(m.buffer, 1))}
	return m.capture, nil
}

// push delivers PCM16 bytes to the open capture. It reports false when the
// frame was dropped.
func (m *browserMicrophone) push(pcm []byte) bool {
	m.mu.Lock()
	c := m.capture
	m.mu.Unlock()
	if c == nil {
		return false
	}
	return c.push(audio.PCM16ToFloat32(pcm))
}

type browserCapture struct {
	mu     sync.Mutex
	frames chan []float32
	closed bool
}

func (c *browserCapture) Frames() <-chan []float32 { return c.frames }

func (c *browserCapture) push(samples []float32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.frames <- samples:
		return true
	default:
		return false
	}
}

func (c *browserCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}

// browserSpeaker plays audio by sending it to the browser, which schedules
// each chunk at the start offset it is given.
type browserSpeaker struct {
	now  func() time.Time
	send func(outboundFrame) bool

	mu  sync.Mutex
	out *browserOutput
}

func (s *browserSpeaker) Open(ctx context.Context, sampleRate int) (live.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = &browserOutput{
		now:     s.now,
		started: s.now(),
		send:    s.send,
		active:  make(map[int64]*time.Timer),
		stopped: make(map[int64]struct{}),
	}
	return s.out, nil
}

// isCanceled reports whether chunk id was stopped before it was written.
func (s *browserSpeaker) isCanceled(id int64) bool {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	return out != nil && out.takeStopped(id)
}

// browserOutput keeps a virtual clock that starts when the output opens.
// Playback of a chunk is assumed to end when the clock passes its end.
type browserOutput struct {
	now     func() time.Time
	started time.Time
	send    func(outboundFrame) bool

	mu      sync.Mutex
	nextID  int64
	active  map[int64]*time.Timer
	stopped map[int64]struct{}
	closed  bool
}

func (o *browserOutput) Now() time.Duration {
	return o.now().Sub(o.started)
}

func (o *browserOutput) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (live.Handle, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, errOutputClosed
	}
	o.nextID++
	id := o.nextID
	dur := buf.Duration()
	delay := max(at+dur-o.Now(), 0)
	o.active[id] = time.AfterFunc(delay, func() {
		o.mu.Lock()
		_, pending := o.active[id]
		delete(o.active, id)
		o.mu.Unlock()
		if pending && onEnded != nil {
			onEnded()
		}
	})
	o.mu.Unlock()

	payload, err := json.Marshal(protocol.ServerAudio{
		Type:       "audio",
		ID:         id,
		DataB64:    audio.EncodeFrame(buf.Samples),
		StartMS:    at.Milliseconds(),
		DurationMS: dur.Milliseconds(),
	})
	if err != nil {
		o.stop(id)
		return nil, err
	}
	if !o.send(outboundFrame{audioID: id, payload: payload}) {
		o.stop(id)
		return nil, errOutputClosed
	}
	return outputHandle{out: o, id: id}, nil
}

func (o *browserOutput) stop(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.active[id]; ok {
		t.Stop()
		delete(o.active, id)
		o.stopped[id] = struct{}{}
	}
}

func (o *browserOutput) takeStopped(id int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.stopped[id]; ok {
		delete(o.stopped, id)
		return true
	}
	return false
}

func (o *browserOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for id, t := range o.active {
		t.Stop()
		delete(o.active, id)
	}
	return nil
}

type outputHandle struct {
	out *browserOutput
	id  int64
}

func (h outputHandle) Stop() { h.out.stop(h.id) }
