package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
)

// ProviderKeyHeader carries the gateway bearer token for model listing, so it
// never appears in a URL.
const ProviderKeyHeader = "X-Provider-Key"

type ModelsHandler struct {
	Config config.Config
	Router *core.Router
	Logger *slog.Logger
}

type ModelsResponse struct {
	Provider types.ProviderKind `json:"provider"`
	Models   []string           `json:"models"`
	// Operations lists what the provider supports so the UI can hide the
	// rest.
	Operations []types.Operation `json:"operations"`
}

// ServeHTTP serves GET /v1/models?kind=&endpoint=[&explicit=1].
//
// The settings page polls this in the background while the user types an
// endpoint, so by default configuration and transport failures yield an
// empty list. explicit=1 (the "test connection" button) surfaces them.
func (h ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	cfg := h.Config.DefaultProvider
	if kind := strings.TrimSpace(q.Get("kind")); kind != "" {
		cfg = types.ProviderConfig{Kind: types.ProviderKind(kind)}
	}
	if endpoint := strings.TrimSpace(q.Get("endpoint")); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if key := strings.TrimSpace(r.Header.Get(ProviderKeyHeader)); key != "" {
		cfg.APIKey = key
	}
	explicit := q.Get("explicit") == "1" || strings.EqualFold(q.Get("explicit"), "true")

	ctx, cancel := Operations{Config: h.Config}.timeout(r.Context())
	defer cancel()
	models, err := h.Router.ListModels(ctx, cfg)
	if err != nil {
		if explicit || !quietInBackground(err) {
			writeErr(w, r, h.Logger, err)
			return
		}
		if h.Logger != nil {
			h.Logger.Debug("model listing failed", "provider", cfg.Kind, "error", err)
		}
		models = []string{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ModelsResponse{
		Provider:   cfg.Kind,
		Models:     models,
		Operations: core.SupportedOperations(cfg.Kind),
	})
}

func quietInBackground(err error) bool {
	return core.IsType(err, core.ErrConfiguration) || core.IsType(err, core.ErrTransport)
}
