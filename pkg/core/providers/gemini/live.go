package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const (
	defaultLiveConnectTimeout = 15 * time.Second
	liveWriteTimeout          = 5 * time.Second
)

var inputAudioMIME = fmt.Sprintf("audio/pcm;rate=%d", audio.InputSampleRate)

// errLiveClosed is returned by SendAudio after Close.
var errLiveClosed = errors.New("gemini: live session is closed")

// OpenLiveSession dials the live endpoint, sends the setup frame and waits
// for the server to acknowledge it.
func (p *Provider) OpenLiveSession(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error) {
	if cfg == nil {
		cfg = &types.LiveConfig{}
	}
	wsURL, err := p.liveEndpoint()
	if err != nil {
		return nil, core.NewConfigurationError(err.Error(), "live_url")
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultLiveConnectTimeout)
		defer cancel()
	}

	dialer := websocket.Dialer{HandshakeTimeout: defaultLiveConnectTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, wsURL, make(http.Header))
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, status, "", err)
	}

	if err := conn.WriteJSON(p.setupMessage(cfg)); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, "", fmt.Errorf("send setup: %w", err))
	}

	deadline := time.Now().Add(defaultLiveConnectTimeout)
	if d, ok := dialCtx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, "", fmt.Errorf("read setup ack: %w", err))
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first liveServerMessage
	if err := json.Unmarshal(payload, &first); err != nil || first.SetupComplete == nil {
		_ = conn.Close()
		return nil, core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, strings.TrimSpace(string(payload)), fmt.Errorf("unexpected first live frame"))
	}

	s := &liveSession{
		conn:   conn,
		events: make(chan types.LiveEvent, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: p.logger,
	}
	go s.readLoop()
	return s, nil
}

func (p *Provider) liveEndpoint() (string, error) {
	u, err := url.Parse(p.liveURL)
	if err != nil {
		return "", fmt.Errorf("live url %q is not valid: %w", p.liveURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("live url %q must use ws or wss", p.liveURL)
	}
	q := u.Query()
	q.Set("key", p.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) setupMessage(cfg *types.LiveConfig) liveClientMessage {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = p.models.Live
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	setup := &liveSetup{
		Model: model,
		GenerationConfig: liveGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	if name := strings.TrimSpace(cfg.VoiceName); name != "" {
		setup.GenerationConfig.SpeechConfig = &liveSpeechConfig{
			VoiceConfig: liveVoiceConfig{PrebuiltVoiceConfig: livePrebuiltVoice{VoiceName: name}},
		}
	}
	if si := strings.TrimSpace(cfg.SystemInstruction); si != "" {
		setup.SystemInstruction = &liveContent{Parts: []livePart{{Text: si}}}
	}
	return liveClientMessage{Setup: setup}
}

// liveSession is an open live websocket.
type liveSession struct {
	conn   *websocket.Conn
	events chan types.LiveEvent
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

func (s *liveSession) Events() <-chan types.LiveEvent { return s.events }

// SendAudio writes one realtime audio frame. Writes are serialized.
func (s *liveSession) SendAudio(ctx context.Context, b64 string) error {
	if s.closed.Load() {
		return errLiveClosed
	}
	msg := liveClientMessage{RealtimeInput: &liveRealtimeInput{
		Audio: &liveBlob{Data: b64, MIMEType: inputAudioMIME},
	}}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(liveWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(msg); err != nil {
		if s.closed.Load() {
			return errLiveClosed
		}
		return core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, "", fmt.Errorf("send audio: %w", err))
	}
	return nil
}

// Close sends a close frame, closes the socket and waits for the read loop.
func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error once the session has ended.
func (s *liveSession) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *liveSession) readLoop() {
	// done closes first so Err is final by the time a consumer sees events close.
	defer func() {
		close(s.done)
		close(s.events)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			s.setErr(core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, "", err))
			return
		}

		var msg liveServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.setErr(core.NewTransportError(types.KindGemini, types.OpOpenLiveSession, 0, "", fmt.Errorf("decode live frame: %w", err)))
			return
		}
		if msg.GoAway != nil {
			s.logger.Warn("live session going away", "time_left", msg.GoAway.TimeLeft)
		}
		event, ok := msg.event()
		if !ok {
			continue
		}
		select {
		case s.events <- event:
		case <-s.stop:
			return
		}
	}
}
