package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
	"github.com/vango-go/vai-studio/pkg/gateway/handlers"
	"github.com/vango-go/vai-studio/pkg/gateway/lifecycle"
	"github.com/vango-go/vai-studio/pkg/gateway/mw"
	"github.com/vango-go/vai-studio/pkg/gateway/ratelimit"
	"github.com/vango-go/vai-studio/pkg/gateway/upstream"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	router        *core.Router
	limiter       *ratelimit.Limiter
	conversations *handlers.ConversationStore
	lifecycle     *lifecycle.Lifecycle
}

// Option adjusts a Server before its routes are built.
type Option func(*Server)

// WithAdapterFactory replaces the upstream adapters, mainly for tests.
func WithAdapterFactory(f core.AdapterFactory) Option {
	return func(s *Server) { s.router = core.NewRouter(f, core.WithLogger(s.logger)) }
}

func WithLifecycle(lc *lifecycle.Lifecycle) Option {
	return func(s *Server) {
		if lc != nil {
			s.lifecycle = lc
		}
	}
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	connectTimeout := cfg.UpstreamConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                   cfg.LimitRPS,
			Burst:                 cfg.LimitBurst,
			MediaCost:             cfg.LimitMediaCost,
			MaxConcurrentRequests: cfg.LimitMaxConcurrentRequests,
			MaxLiveSessions:       cfg.LiveMaxSessions,
		}),
		conversations: handlers.NewConversationStore(cfg.ConversationTTL, cfg.MaxConversations),
		lifecycle:     &lifecycle.Lifecycle{},
	}
	s.router = core.NewRouter(upstream.Factory{
		HTTPClient:    httpClient,
		Logger:        logger,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		GeminiLiveURL: cfg.GeminiLiveURL,
	}, core.WithLogger(logger))

	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})

	chat := handlers.ChatHandler{Config: s.cfg, Router: s.router, Logger: s.logger, Store: s.conversations}
	s.mux.Handle("/v1/chat", chat.Send())
	s.mux.Handle("GET /v1/chat/{id}", chat.Get())
	s.mux.Handle("DELETE /v1/chat/{id}", chat.Delete())

	ops := handlers.Operations{Config: s.cfg, Router: s.router, Logger: s.logger}
	s.mux.Handle("/v1/query", ops.Query())
	s.mux.Handle("/v1/images/generate", ops.GenerateImage())
	s.mux.Handle("/v1/images/edit", ops.EditImage())
	s.mux.Handle("/v1/images/analyze", ops.AnalyzeImage())
	s.mux.Handle("/v1/video/analyze", ops.AnalyzeVideo())
	s.mux.Handle("/v1/search", ops.Search())
	s.mux.Handle("/v1/speech", ops.Speech())

	s.mux.Handle("/v1/models", handlers.ModelsHandler{Config: s.cfg, Router: s.router, Logger: s.logger})
	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:    s.cfg,
		Router:    s.router,
		Logger:    s.logger,
		Limiter:   s.limiter,
		Lifecycle: s.lifecycle,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Lifecycle is shared with the process so shutdown can drain live sessions.
func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.lifecycle }

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
