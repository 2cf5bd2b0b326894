package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
	"github.com/vango-go/vai-studio/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-studio/pkg/gateway/live/protocol"
	"github.com/vango-go/vai-studio/pkg/gateway/live/session"
	"github.com/vango-go/vai-studio/pkg/gateway/mw"
	"github.com/vango-go/vai-studio/pkg/gateway/principal"
	"github.com/vango-go/vai-studio/pkg/gateway/ratelimit"
)

// LiveHandler handles /v1/live websocket sessions.
type LiveHandler struct {
	Config    config.Config
	Router    *core.Router
	Logger    *slog.Logger
	Limiter   *ratelimit.Limiter
	Lifecycle *lifecycle.Lifecycle
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeCoreErrorJSON(w, reqID, core.NewAPIError("gateway is draining"), http.StatusServiceUnavailable)
		return
	}
	if !h.originAllowed(r) {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello")
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello")
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		code := "bad_request"
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			code = de.Code
		}
		h.writeWSError(conn, code, err.Error())
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello")
		return
	}

	providerCfg := h.Config.DefaultProvider
	if hello.Provider != nil {
		providerCfg = *hello.Provider
	}
	if !core.Supports(providerCfg.Kind, types.OpOpenLiveSession) {
		h.writeWSError(conn, string(core.ErrUnsupportedOperation), "provider "+string(providerCfg.Kind)+" does not support live sessions")
		return
	}

	p := principal.Resolve(r, h.Config)
	if h.Limiter != nil && h.Config.LiveMaxSessions > 0 {
		dec := h.Limiter.AcquireLive(p.Key, time.Now())
		if !dec.Allowed {
			h.writeWSError(conn, string(core.ErrRateLimit), "too many active live sessions")
			return
		}
		defer dec.Permit.Release()
	}
	_ = conn.SetReadDeadline(time.Time{})

	reqID := requestIDFromContext(r.Context())
	if h.Logger != nil {
		h.Logger.Debug("live hello", "request_id", reqID, "hello", hello.RedactedForLog())
	}

	s, err := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    h.Logger,
		Connector: live.RouterConnector(h.Router, providerCfg),
		Hello:     hello,
		RequestID: reqID,
		Config: session.Config{
			MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes: h.Config.LiveMaxJSONMessageBytes,
			PingInterval:        h.Config.LiveWSPingInterval,
			WriteTimeout:        h.Config.LiveWSWriteTimeout,
			MaxSessionDuration:  h.Config.LiveMaxSessionDuration,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize live session")
		return
	}

	key := reqID
	if key == "" {
		key = uuid.NewString()
	}
	unregister := h.Lifecycle.Register(key, lifecycle.SessionHandle{
		Cancel: s.Cancel,
		Notify: s.SendWarning,
	})
	defer unregister()

	if err := s.Run(r.Context()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("live session ended with error", "session_id", s.ID(), "request_id", reqID, "error", err)
		}
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, code, message string) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Code: code, Message: message, Close: true})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
}

func requestIDFromContext(ctx context.Context) string {
	if id, ok := mw.RequestIDFrom(ctx); ok {
		return id
	}
	return ""
}
