package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/vai-studio/pkg/gateway/config"
	"github.com/vango-go/vai-studio/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK              bool     `json:"ok"`
		Draining        bool     `json:"draining"`
		DefaultProvider string   `json:"default_provider"`
		GeminiKeySet    bool     `json:"gemini_key_configured"`
		LiveSessions    int      `json:"live_sessions"`
		LimitsEnabled   bool     `json:"limits_enabled"`
		Issues          []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	if err := h.Config.Validate(); err != nil {
		issues = append(issues, err.Error())
	}
	draining := h.Lifecycle.IsDraining()
	if draining {
		issues = append(issues, "draining")
	}

	limitsEnabled := (h.Config.LimitRPS > 0 && h.Config.LimitBurst > 0) ||
		h.Config.LimitMaxConcurrentRequests > 0

	ok := len(issues) == 0
	status := http.StatusOK
	switch {
	case draining:
		status = http.StatusServiceUnavailable
	case !ok:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:              ok,
		Draining:        draining,
		DefaultProvider: string(h.Config.DefaultProvider.Kind),
		GeminiKeySet:    h.Config.GeminiAPIKey != "",
		LiveSessions:    h.Lifecycle.Sessions(),
		LimitsEnabled:   limitsEnabled,
		Issues:          issues,
	})
}
