// Package session bridges one browser WebSocket to a live.Controller. The
// browser is both the controller's microphone, sending binary PCM16 frames,
// and its speaker, receiving timed audio chunks as JSON.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/live/protocol"
)

const (
	defaultOutboundQueueSize = 128
	defaultCaptureBuffer     = 64
	defaultInboundBurst      = 2 * time.Second
)

var errClientGone = errors.New("client disconnected before the session opened")

type Config struct {
	MaxAudioFrameBytes  int
	MaxJSONMessageBytes int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	MaxSessionDuration  time.Duration
	OutboundQueueSize   int
	// InboundBurst is how far ahead of real time the browser may stream
	// microphone audio before frames are dropped.
	InboundBurst time.Duration
}

type wsConn interface {
	wsWriter
	ReadMessage() (messageType int, p []byte, err error)
}

type Dependencies struct {
	Conn      wsConn
	Logger    *slog.Logger
	Connector live.Connector
	Hello     protocol.ClientHello
	RequestID string
	Config    Config
	Now       func() time.Time
}

type Session struct {
	conn      wsConn
	logger    *slog.Logger
	connector live.Connector
	hello     protocol.ClientHello
	requestID string
	cfg       Config
	now       func() time.Time

	mic     *browserMicrophone
	speaker *browserSpeaker
	ctrl    *live.Controller
	inbound *inboundAudioLimiter

	priority   chan outboundFrame
	normal     chan outboundFrame
	writerDone chan struct{}

	mu       sync.Mutex
	id       string
	cancel   context.CancelFunc
	canceled bool

	droppedFrames atomic.Int64
	rateWarned    atomic.Bool
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, errors.New("session: conn is required")
	}
	if deps.Connector == nil {
		return nil, errors.New("session: connector is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	queueSize := deps.Config.OutboundQueueSize
	if queueSize <= 0 {
		queueSize = defaultOutboundQueueSize
	}
	burst := deps.Config.InboundBurst
	if burst <= 0 {
		burst = defaultInboundBurst
	}

	s := &Session{
		conn:       deps.Conn,
		logger:     logger,
		connector:  deps.Connector,
		hello:      deps.Hello,
		requestID:  deps.RequestID,
		cfg:        deps.Config,
		now:        now,
		mic:        &browserMicrophone{buffer: defaultCaptureBuffer},
		inbound:    newInboundAudioLimiter(now, int64(audio.InputSampleRate*2), burst),
		priority:   make(chan outboundFrame, 16),
		normal:     make(chan outboundFrame, queueSize),
		writerDone: make(chan struct{}),
	}

	var speaker live.Speaker
	if !deps.Hello.Transcribe() {
		s.speaker = &browserSpeaker{now: now, send: s.sendNormal}
		speaker = s.speaker
	}
	s.ctrl = live.NewController(s.mic, speaker, live.ConnectorFunc(s.connect),
		live.WithLiveConfig(deps.Hello.LiveConfig()),
		live.WithLogger(logger),
	)
	return s, nil
}

// ID returns the live session ID once the remote session is open.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Cancel ends the session without waiting for teardown. Called before Run,
// it makes Run end immediately.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.canceled = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SendWarning queues a warning for the client.
func (s *Session) SendWarning(code, message string) error {
	if !s.sendPriority(encode(protocol.ServerWarning{Type: "warning", Code: code, Message: message})) {
		return errClientGone
	}
	return nil
}

// Run starts the controller and pumps messages both ways until the session
// closes. Cancelling ctx ends the session.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	if s.canceled {
		cancel()
	}
	s.mu.Unlock()

	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	writer := &outboundWriter{
		ws:       s.conn,
		ctx:      writerCtx,
		cfg:      s.cfg,
		priority: s.priority,
		normal:   s.normal,
	}
	if s.speaker != nil {
		writer.isCanceled = s.speaker.isCanceled
	}
	writeErr := make(chan error, 1)
	go func() {
		err := writer.Run()
		close(s.writerDone)
		cancel()
		writeErr <- err
	}()
	go s.readLoop(ctx, cancel)

	if d := s.cfg.MaxSessionDuration; d > 0 {
		timer := time.AfterFunc(d, func() {
			_ = s.SendWarning("max_session_duration", "session reached its maximum duration")
			cancel()
		})
		defer timer.Stop()
	}

	startErr := s.ctrl.Start(ctx)
	reason := s.forwardEvents()

	stopWriter()
	err := <-writeErr

	s.logger.Info("live bridge closed",
		"session_id", s.ID(),
		"request_id", s.requestID,
		"reason", reason,
		"dropped_audio_frames", s.droppedFrames.Load(),
	)
	if startErr != nil {
		return startErr
	}
	return err
}

// connect opens the remote session and acknowledges the hello before the
// controller starts receiving, so hello_ack is always the first message.
func (s *Session) connect(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error) {
	conn, err := s.connector.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	id := s.ctrl.SessionID()
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()

	if !s.sendPriority(encode(s.helloAck(id))) {
		_ = conn.Close()
		return nil, errClientGone
	}
	return conn, nil
}

func (s *Session) helloAck(id string) protocol.ServerHelloAck {
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       id,
		Mode:            s.hello.Mode,
		AudioIn: protocol.AudioFormat{
			Encoding:     protocol.EncodingPCM16,
			SampleRateHz: audio.InputSampleRate,
			Channels:     1,
		},
		Limits: &protocol.HelloAckLimits{
			MaxAudioFrameBytes:  s.cfg.MaxAudioFrameBytes,
			MaxJSONMessageBytes: s.cfg.MaxJSONMessageBytes,
			MaxSessionMS:        s.cfg.MaxSessionDuration.Milliseconds(),
		},
	}
	if s.speaker != nil {
		ack.AudioOut = &protocol.AudioFormat{
			Encoding:     protocol.EncodingPCM16,
			SampleRateHz: audio.OutputSampleRate,
			Channels:     1,
		}
	}
	return ack
}

// forwardEvents relays controller events until the session has closed and
// returns the close reason.
func (s *Session) forwardEvents() string {
	events := s.ctrl.Events()
	done := make(chan struct{})
	go func() {
		s.ctrl.Wait()
		close(done)
	}()

	for {
		select {
		case ev := <-events:
			if reason, closed := s.forward(ev); closed {
				return reason
			}
		case <-done:
			for {
				select {
				case ev := <-events:
					if reason, closed := s.forward(ev); closed {
						return reason
					}
				default:
					return "stopped"
				}
			}
		}
	}
}

func (s *Session) forward(ev live.Event) (string, bool) {
	switch e := ev.(type) {
	case *live.StateChangedEvent:
		s.sendNormal(encode(protocol.ServerState{Type: "state", State: e.To}))
	case *live.TranscriptEvent:
		s.sendNormal(encode(protocol.ServerTranscript{Type: "transcript", Entry: e.Entry}))
	case *live.InterruptedEvent:
		s.sendPriority(encode(protocol.ServerAudioStop{Type: "audio_stop", Stopped: e.Stopped}))
	case *live.ErrorEvent:
		s.sendPriority(encode(protocol.ServerError{Type: "error", Code: e.Code, Message: e.Message}))
	case *live.SessionClosedEvent:
		// Queued behind pending transcripts so the client sees them first.
		frame := encode(protocol.ServerClosed{Type: "closed", Reason: e.Reason})
		frame.written = make(chan struct{})
		if s.sendNormal(frame) {
			s.awaitWritten(frame)
		}
		return e.Reason, true
	case *live.AudioScheduledEvent:
		s.logger.Debug("live audio scheduled", "session_id", s.ID(), "start", e.Start, "duration", e.Duration)
	}
	return "", false
}

func (s *Session) awaitWritten(frame outboundFrame) {
	timeout := s.cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-frame.written:
	case <-s.writerDone:
	case <-timer.C:
	}
}

func (s *Session) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("live client read failed", "session_id", s.ID(), "error", err)
			}
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			s.handleAudio(data)
		case websocket.TextMessage:
			s.handleText(data)
		}
	}
}

func (s *Session) handleAudio(data []byte) {
	if len(data) == 0 {
		return
	}
	if s.cfg.MaxAudioFrameBytes > 0 && len(data) > s.cfg.MaxAudioFrameBytes {
		s.sendPriority(encode(protocol.ServerError{
			Type:    "error",
			Code:    "bad_request",
			Message: fmt.Sprintf("audio frame exceeds %d bytes", s.cfg.MaxAudioFrameBytes),
		}))
		return
	}
	if len(data)%2 != 0 {
		s.sendPriority(encode(protocol.ServerError{
			Type:    "error",
			Code:    "bad_request",
			Message: "audio frame must contain whole 16-bit samples",
		}))
		return
	}
	if !s.inbound.Allow(len(data)) {
		s.droppedFrames.Add(1)
		if s.rateWarned.CompareAndSwap(false, true) {
			_ = s.SendWarning("audio_rate_limited", "microphone audio is arriving faster than real time; frames are being dropped")
		}
		return
	}
	if !s.mic.push(data) {
		if n := s.droppedFrames.Add(1); n == 1 || n%100 == 0 {
			s.logger.Warn("live capture buffer full, dropping frames", "session_id", s.ID(), "dropped", n)
		}
	}
}

func (s *Session) handleText(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		code := "bad_request"
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			code = de.Code
		}
		s.sendPriority(encode(protocol.ServerError{Type: "error", Code: code, Message: err.Error()}))
		return
	}
	switch msg.(type) {
	case protocol.ClientStop:
		go func() { _ = s.ctrl.Stop() }()
	case protocol.ClientHello:
		s.sendPriority(encode(protocol.ServerError{Type: "error", Code: "bad_request", Message: "hello was already received"}))
	}
}

func (s *Session) sendPriority(frame outboundFrame) bool {
	return s.send(s.priority, frame)
}

func (s *Session) sendNormal(frame outboundFrame) bool {
	return s.send(s.normal, frame)
}

func (s *Session) send(ch chan<- outboundFrame, frame outboundFrame) bool {
	if len(frame.payload) == 0 {
		return false
	}
	select {
	case <-s.writerDone:
		return false
	default:
	}
	select {
	case ch <- frame:
		return true
	case <-s.writerDone:
		return false
	}
}

func encode(v any) outboundFrame {
	payload, err := json.Marshal(v)
	if err != nil {
		return outboundFrame{}
	}
	return outboundFrame{payload: payload}
}
