package core

import (
	"context"
	"log/slog"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// AdapterFactory builds the adapter serving cfg. It is called once per
// routed operation and only after the support table accepted the pair.
type AdapterFactory interface {
	Adapter(cfg types.ProviderConfig) (Provider, error)
}

// AdapterFactoryFunc adapts a function to AdapterFactory.
type AdapterFactoryFunc func(cfg types.ProviderConfig) (Provider, error)

func (f AdapterFactoryFunc) Adapter(cfg types.ProviderConfig) (Provider, error) { return f(cfg) }

// Router dispatches each operation to the adapter selected by the caller's
// provider configuration. It holds no mutable state; configuration is read
// per call.
type Router struct {
	factory AdapterFactory
	logger  *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger used for routing decisions.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a Router backed by factory.
func NewRouter(factory AdapterFactory, opts ...RouterOption) *Router {
	r := &Router{
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supports reports whether the configured provider serves op.
func (r *Router) Supports(cfg types.ProviderConfig, op types.Operation) bool {
	return Supports(cfg.Kind, op)
}

func (r *Router) SendChatMessage(ctx context.Context, cfg types.ProviderConfig, req *types.ChatRequest) (string, error) {
	p, err := resolve[Chatter](r, cfg, types.OpSendChatMessage)
	if err != nil {
		return "", err
	}
	return p.SendChatMessage(ctx, req)
}

func (r *Router) ComplexQuery(ctx context.Context, cfg types.ProviderConfig, req *types.QueryRequest) (string, error) {
	p, err := resolve[ComplexQuerier](r, cfg, types.OpComplexQuery)
	if err != nil {
		return "", err
	}
	return p.ComplexQuery(ctx, req)
}

func (r *Router) GenerateImage(ctx context.Context, cfg types.ProviderConfig, req *types.ImageRequest) (*types.MediaPart, error) {
	p, err := resolve[ImageGenerator](r, cfg, types.OpGenerateImage)
	if err != nil {
		return nil, err
	}
	return p.GenerateImage(ctx, req)
}

func (r *Router) EditImage(ctx context.Context, cfg types.ProviderConfig, req *types.EditImageRequest) (*types.MediaPart, error) {
	p, err := resolve[ImageEditor](r, cfg, types.OpEditImage)
	if err != nil {
		return nil, err
	}
	return p.EditImage(ctx, req)
}

func (r *Router) AnalyzeImage(ctx context.Context, cfg types.ProviderConfig, req *types.AnalyzeImageRequest) (string, error) {
	p, err := resolve[ImageAnalyzer](r, cfg, types.OpAnalyzeImage)
	if err != nil {
		return "", err
	}
	return p.AnalyzeImage(ctx, req)
}

func (r *Router) AnalyzeVideoFrames(ctx context.Context, cfg types.ProviderConfig, req *types.AnalyzeVideoRequest) (string, error) {
	p, err := resolve[VideoAnalyzer](r, cfg, types.OpAnalyzeVideoFrames)
	if err != nil {
		return "", err
	}
	return p.AnalyzeVideoFrames(ctx, req)
}

func (r *Router) GroundedSearch(ctx context.Context, cfg types.ProviderConfig, req *types.SearchRequest) (*types.SearchResult, error) {
	p, err := resolve[GroundedSearcher](r, cfg, types.OpGroundedSearch)
	if err != nil {
		return nil, err
	}
	return p.GroundedSearch(ctx, req)
}

func (r *Router) SynthesizeSpeech(ctx context.Context, cfg types.ProviderConfig, req *types.SpeechRequest) (*types.SpeechResult, error) {
	p, err := resolve[SpeechSynthesizer](r, cfg, types.OpSynthesizeSpeech)
	if err != nil {
		return nil, err
	}
	return p.SynthesizeSpeech(ctx, req)
}

// ListModels returns the provider's sorted model names. Providers without a
// model registry yield an empty list rather than an error.
func (r *Router) ListModels(ctx context.Context, cfg types.ProviderConfig) ([]string, error) {
	if cfg.Kind.Valid() && !Supports(cfg.Kind, types.OpListModels) {
		return []string{}, nil
	}
	p, err := resolve[ModelLister](r, cfg, types.OpListModels)
	if err != nil {
		return nil, err
	}
	return p.ListModels(ctx)
}

func (r *Router) OpenLiveSession(ctx context.Context, cfg types.ProviderConfig, live *types.LiveConfig) (LiveConn, error) {
	p, err := resolve[LiveConnector](r, cfg, types.OpOpenLiveSession)
	if err != nil {
		return nil, err
	}
	return p.OpenLiveSession(ctx, live)
}

// resolve checks the support table before the adapter is built, so an
// unsupported pair never reaches an adapter.
func resolve[T Provider](r *Router, cfg types.ProviderConfig, op types.Operation) (T, error) {
	var zero T
	if !cfg.Kind.Valid() {
		return zero, NewConfigurationError("unknown provider kind "+string(cfg.Kind), "kind")
	}
	if !Supports(cfg.Kind, op) {
		r.logger.Debug("operation rejected", "operation", op, "provider", cfg.Kind)
		return zero, NewUnsupportedOperationError(op, cfg.Kind)
	}

	p, err := r.factory.Adapter(cfg)
	if err != nil {
		return zero, err
	}
	impl, ok := p.(T)
	if !ok {
		return zero, NewUnsupportedOperationError(op, cfg.Kind)
	}
	r.logger.Debug("operation routed", "operation", op, "provider", cfg.Kind)
	return impl, nil
}
