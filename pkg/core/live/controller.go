package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const (
	defaultQueueSize   = 32
	defaultEventBuffer = 256
)

var (
	// ErrNotIdle is returned by Start while a session is active or still
	// tearing down.
	ErrNotIdle = errors.New("live: a session is already active")

	errStopped      = errors.New("stopped")
	errRemoteClosed = errors.New("remote session closed")
	errCaptureEnded = errors.New("microphone capture ended")
)

// Option configures a Controller.
type Option func(*Controller)

// WithLiveConfig sets the model, voice and system instruction requested
// when connecting.
func WithLiveConfig(cfg types.LiveConfig) Option {
	return func(c *Controller) {
		c.liveConfig = cfg
	}
}

// WithQueueSize bounds the number of encoded frames waiting to be sent.
func WithQueueSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller runs live sessions one at a time.
type Controller struct {
	mic        Microphone
	speaker    Speaker
	connector  Connector
	liveConfig types.LiveConfig

	queueSize   int
	eventBuffer int
	logger      *slog.Logger

	transcript Transcript
	events     chan Event

	mu      sync.Mutex
	state   State
	current *session
}

// session is the per-Start state. Everything here is released by teardown.
type session struct {
	id     string
	cancel context.CancelCauseFunc
	done   chan struct{}

	capture   Capture
	output    Output
	scheduler *Scheduler
	conn      core.LiveConn
	queue     chan string

	closing atomic.Bool
	// dropped counts outbound frames lost to a full queue in this session.
	dropped atomic.Int64
}

// NewController creates a controller. A nil speaker selects
// transcription-only mode.
func NewController(mic Microphone, speaker Speaker, connector Connector, opts ...Option) *Controller {
	c := &Controller{
		mic:         mic,
		speaker:     speaker,
		connector:   connector,
		queueSize:   defaultQueueSize,
		eventBuffer: defaultEventBuffer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan Event, c.eventBuffer)
	return c
}

// Events returns the controller's event stream. It stays open across
// sessions and is never closed.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the active session's ID, or "" when idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.id
}

// Transcript returns the transcript of the current or most recent session.
func (c *Controller) Transcript() []TranscriptEntry {
	return c.transcript.Entries()
}

// TranscribeOnly reports whether the controller plays no audio and keeps
// only the user's side of the transcript.
func (c *Controller) TranscribeOnly() bool {
	return c.speaker == nil
}

// Start acquires the microphone, connects the remote session and starts
// streaming. It returns once the session is open or has failed; a failed
// Start leaves the controller idle. Cancelling ctx ends the session.
func (c *Controller) Start(ctx context.Context) error {
	sctx, cancel := context.WithCancelCause(ctx)
	s := &session{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
		queue:  make(chan string, c.queueSize),
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		cancel(nil)
		return ErrNotIdle
	}
	c.current = s
	c.state = StateStarting
	c.mu.Unlock()

	c.transcript.Reset()
	c.emit(&StateChangedEvent{SessionID: s.id, From: StateIdle, To: StateStarting})

	capture, err := c.mic.Open(sctx, audio.InputSampleRate)
	if err != nil {
		if !core.IsType(err, core.ErrPermission) {
			err = core.NewPermissionError(fmt.Sprintf("microphone unavailable: %v", err), err)
		}
		c.abort(sctx, s, err)
		return err
	}
	s.capture = capture
	c.setState(s, StateOpen)

	if c.speaker != nil {
		out, err := c.speaker.Open(sctx, audio.OutputSampleRate)
		if err != nil {
			err = fmt.Errorf("open audio output: %w", err)
			c.abort(sctx, s, err)
			return err
		}
		s.output = out
		s.scheduler = NewScheduler(out)
	}

	cfg := c.liveConfig
	conn, err := c.connector.Connect(sctx, &cfg)
	if err != nil {
		c.abort(sctx, s, err)
		return err
	}
	s.conn = conn

	c.logger.Info("live session open",
		"session_id", s.id,
		"transcribe_only", c.TranscribeOnly(),
	)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return c.captureLoop(gctx, s) })
	g.Go(func() error { return c.sendLoop(gctx, s) })
	g.Go(func() error { return c.receiveLoop(gctx, s) })
	go c.supervise(gctx, g, s)
	return nil
}

// Stop ends the active session and blocks until teardown has finished.
// It is a no-op when idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	s.cancel(errStopped)
	<-s.done
	return nil
}

// Wait blocks until the active session, if any, has been torn down.
func (c *Controller) Wait() {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

// abort unwinds a Start that failed before the loops were running. A
// failure caused by Stop is not reported as an error.
func (c *Controller) abort(ctx context.Context, s *session, err error) {
	if !errors.Is(context.Cause(ctx), errStopped) {
		c.logger.Warn("live session failed to start", "session_id", s.id, "error", err)
		c.emitError(err)
	}
	if c.State() == StateOpen {
		c.setState(s, StateClosing)
	}
	c.release(s)
	s.cancel(err)
	c.finish(s, err.Error())
}

func (c *Controller) supervise(ctx context.Context, g *errgroup.Group, s *session) {
	<-ctx.Done()
	cause := context.Cause(ctx)

	reason := "stopped"
	switch {
	case errors.Is(cause, errStopped):
	case errors.Is(cause, errRemoteClosed):
		reason = "remote closed"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		reason = "context done"
	default:
		reason = "error"
		c.logger.Error("live session failed", "session_id", s.id, "error", cause)
		c.emitError(cause)
	}

	c.setState(s, StateClosing)
	c.release(s)
	_ = g.Wait()

	for _, entry := range c.transcript.SealAll() {
		c.emit(&TranscriptEvent{Entry: entry})
	}
	c.logger.Info("live session closed", "session_id", s.id, "reason", reason)
	c.finish(s, reason)
}

// release frees every resource held by the session. Frames enqueued from
// here on are dropped.
func (c *Controller) release(s *session) {
	s.closing.Store(true)
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			c.logger.Debug("close capture", "session_id", s.id, "error", err)
		}
	}
	if s.scheduler != nil {
		s.scheduler.Interrupt()
	}
	if s.output != nil {
		if err := s.output.Close(); err != nil {
			c.logger.Debug("close output", "session_id", s.id, "error", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			c.logger.Debug("close remote session", "session_id", s.id, "error", err)
		}
	}
}

func (c *Controller) finish(s *session, reason string) {
	c.setState(s, StateIdle)
	c.emit(&SessionClosedEvent{SessionID: s.id, Reason: reason})

	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
	close(s.done)
}

func (c *Controller) captureLoop(ctx context.Context, s *session) error {
	framer := audio.NewFramer(audio.CaptureFrameSize)
	frames := s.capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return nil
		case samples, ok := <-frames:
			if !ok {
				if s.closing.Load() {
					return nil
				}
				return errCaptureEnded
			}
			for _, frame := range framer.Write(samples) {
				c.enqueue(s, audio.EncodeFrame(frame))
			}
		}
	}
}

// enqueue never blocks: a full queue or a closing session drops the frame.
func (c *Controller) enqueue(s *session, frame string) {
	if s.closing.Load() {
		return
	}
	select {
	case s.queue <- frame:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			c.logger.Warn("outbound audio queue full, dropping frames", "session_id", s.id, "dropped", n)
		}
	}
}

func (c *Controller) sendLoop(ctx context.Context, s *session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-s.queue:
			if s.closing.Load() {
				return nil
			}
			if err := s.conn.SendAudio(ctx, frame); err != nil {
				if s.closing.Load() || ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Controller) receiveLoop(ctx context.Context, s *session) error {
	events := s.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if s.closing.Load() {
					return nil
				}
				if err := s.conn.Err(); err != nil {
					return err
				}
				return errRemoteClosed
			}
			c.handle(s, ev)
		}
	}
}

// handle applies one server message. Messages arriving after teardown
// began are ignored.
func (c *Controller) handle(s *session, ev types.LiveEvent) {
	if s.closing.Load() {
		return
	}

	fragments := false
	if ev.InputTranscript != "" {
		fragments = true
		for _, entry := range c.transcript.Add(types.RoleUser, ev.InputTranscript, ev.TurnComplete) {
			c.emit(&TranscriptEvent{Entry: entry})
		}
	}
	if ev.OutputTranscript != "" && !c.TranscribeOnly() {
		fragments = true
		for _, entry := range c.transcript.Add(types.RoleAssistant, ev.OutputTranscript, ev.TurnComplete) {
			c.emit(&TranscriptEvent{Entry: entry})
		}
	}
	if ev.TurnComplete && !fragments {
		if entry, changed := c.transcript.SealLatest(); changed {
			c.emit(&TranscriptEvent{Entry: entry})
		}
	}

	if s.scheduler != nil {
		for _, chunk := range ev.Audio {
			buf, err := audio.DecodeChunk(chunk, audio.OutputSampleRate)
			if err != nil {
				c.logger.Warn("skipping undecodable audio chunk", "session_id", s.id, "error", err)
				continue
			}
			start, err := s.scheduler.Schedule(buf)
			if err != nil {
				c.logger.Warn("schedule audio", "session_id", s.id, "error", err)
				continue
			}
			c.emit(&AudioScheduledEvent{Start: start, Duration: buf.Duration()})
		}
	}

	if ev.Interrupted {
		stopped := 0
		if s.scheduler != nil {
			stopped = s.scheduler.Interrupt()
		}
		c.emit(&InterruptedEvent{Stopped: stopped})
	}
}

// setState updates the state and emits an event.
func (c *Controller) setState(s *session, to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from != to {
		c.logger.Debug("live state", "session_id", s.id, "from", from.String(), "to", to.String())
		c.emit(&StateChangedEvent{SessionID: s.id, From: from, To: to})
	}
}

func (c *Controller) emitError(err error) {
	code := string(core.ErrAPI)
	if coreErr, ok := core.AsError(err); ok {
		code = string(coreErr.Type)
	}
	c.emit(&ErrorEvent{Code: code, Message: err.Error()})
}

// emit sends an event without blocking; a full channel drops it.
func (c *Controller) emit(event Event) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("live event channel full, dropping event", "type", event.EventType())
	}
}
