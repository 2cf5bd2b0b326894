package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

type fakeMic struct {
	err    error
	frames chan []float32

	mu     sync.Mutex
	opened int
	closed int
	rate   int
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 16)}
}

func (m *fakeMic) Open(ctx context.Context, rate int) (Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.opened++
	m.rate = rate
	return &fakeCapture{mic: m}, nil
}

func (m *fakeMic) closedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeCapture struct {
	mic  *fakeMic
	once sync.Once
}

func (c *fakeCapture) Frames() <-chan []float32 { return c.mic.frames }

func (c *fakeCapture) Close() error {
	c.once.Do(func() {
		c.mic.mu.Lock()
		c.mic.closed++
		c.mic.mu.Unlock()
	})
	return nil
}

type fakeSpeaker struct {
	mu  sync.Mutex
	out *fakeOutput
}

func (s *fakeSpeaker) Open(ctx context.Context, rate int) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = &fakeOutput{rate: rate}
	return s.out, nil
}

func (s *fakeSpeaker) output() *fakeOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

type scheduled struct {
	at, dur time.Duration
	handle  *fakeHandle
	onEnded func()
}

// fakeOutput has a manually advanced clock.
type fakeOutput struct {
	rate int

	mu     sync.Mutex
	now    time.Duration
	items  []scheduled
	closed bool
}

func (o *fakeOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now += d
}

func (o *fakeOutput) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errors.New("output closed")
	}
	h := &fakeHandle{}
	o.items = append(o.items, scheduled{at: at, dur: buf.Duration(), handle: h, onEnded: onEnded})
	return h, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) snapshot() []scheduled {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]scheduled(nil), o.items...)
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fakeHandle struct {
	mu      sync.Mutex
	stopped bool
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
}

func (h *fakeHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeConn struct {
	events chan types.LiveEvent
	sent   chan string
	gate   chan struct{}

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	err       error
	sendErr   error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan types.LiveEvent, 16),
		sent:   make(chan string, 64),
	}
}

func (c *fakeConn) SendAudio(ctx context.Context, b64 string) error {
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case c.sent <- b64:
	default:
	}
	return nil
}

func (c *fakeConn) Events() <-chan types.LiveEvent { return c.events }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// fail ends the stream with a transport error.
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnector struct {
	conn  *fakeConn
	err   error
	mu    sync.Mutex
	calls int
	cfg   *types.LiveConfig
}

func (f *fakeConnector) Connect(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

func (f *fakeConnector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
