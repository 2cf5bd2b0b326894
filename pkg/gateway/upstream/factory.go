package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/providers/gemini"
	"github.com/vango-go/vai-studio/pkg/core/providers/ollama"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Factory builds a fresh adapter for every routed call from the caller's
// provider configuration. It satisfies core.AdapterFactory.
type Factory struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Gemini fills in what a hosted request leaves empty.
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiLiveURL string
}

var _ core.AdapterFactory = Factory{}

func (f Factory) Adapter(cfg types.ProviderConfig) (core.Provider, error) {
	client := f.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Kind {
	case types.KindGemini:
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			key = f.GeminiAPIKey
		}
		opts := []gemini.Option{gemini.WithHTTPClient(client), gemini.WithLogger(logger)}
		if f.GeminiBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(f.GeminiBaseURL))
		}
		if f.GeminiLiveURL != "" {
			opts = append(opts, gemini.WithLiveURL(f.GeminiLiveURL))
		}
		// The SDK client is built without network access, so no request
		// context is needed here.
		p, err := gemini.New(context.Background(), key, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case types.KindGateway, types.KindSelfHosted:
		p, err := ollama.New(cfg, ollama.WithHTTPClient(client))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, core.NewConfigurationError("unknown provider kind "+string(cfg.Kind), "kind")
	}
}
