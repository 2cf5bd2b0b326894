package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

var studioEnvKeys = []string{
	"VAI_STUDIO_ADDR",
	"VAI_STUDIO_LOG_FORMAT",
	"VAI_STUDIO_LOG_LEVEL",
	"VAI_STUDIO_TRUST_PROXY_HEADERS",
	"VAI_STUDIO_MAX_BODY_BYTES",
	"VAI_STUDIO_CORS_ORIGINS",
	"VAI_STUDIO_MAX_VIDEO_FRAMES",
	"VAI_STUDIO_MAX_MEDIA_BYTES_PER_PART",
	"VAI_STUDIO_MAX_MEDIA_BYTES_TOTAL",
	"VAI_STUDIO_CONVERSATION_TTL",
	"VAI_STUDIO_MAX_CONVERSATIONS",
	"VAI_STUDIO_LIVE_MAX_SESSIONS",
	"VAI_STUDIO_LIVE_MAX_DURATION",
	"VAI_STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES",
	"VAI_STUDIO_LIVE_MAX_JSON_MESSAGE_BYTES",
	"VAI_STUDIO_LIVE_WS_PING_INTERVAL",
	"VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT",
	"VAI_STUDIO_LIVE_HANDSHAKE_TIMEOUT",
	"VAI_STUDIO_RATE_LIMIT_RPS",
	"VAI_STUDIO_RATE_LIMIT_BURST",
	"VAI_STUDIO_MAX_CONCURRENT_REQUESTS",
	"VAI_STUDIO_RATE_LIMIT_MEDIA_COST",
	"VAI_STUDIO_READ_HEADER_TIMEOUT",
	"VAI_STUDIO_READ_TIMEOUT",
	"VAI_STUDIO_TOTAL_REQUEST_TIMEOUT",
	"VAI_STUDIO_SHUTDOWN_GRACE_PERIOD",
	"VAI_STUDIO_CONNECT_TIMEOUT",
	"VAI_STUDIO_RESPONSE_HEADER_TIMEOUT",
	"VAI_STUDIO_GEMINI_API_KEY",
	"VAI_STUDIO_GEMINI_BASE_URL",
	"VAI_STUDIO_GEMINI_LIVE_URL",
	"VAI_STUDIO_PROVIDER",
	"VAI_STUDIO_OLLAMA_ENDPOINT",
	"VAI_STUDIO_OLLAMA_MODEL",
	"VAI_STUDIO_SPEECH_ENDPOINT",
	"GEMINI_API_KEY",
	"OLLAMA_API_KEY",
}

func clearStudioEnv(t *testing.T) {
	t.Helper()
	for _, key := range studioEnvKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studio.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearStudioEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Addr != ":8080" || cfg.LogFormat != LogFormatText {
		t.Fatalf("Addr/LogFormat = %q/%q", cfg.Addr, cfg.LogFormat)
	}
	if cfg.DefaultProvider.Kind != types.KindGemini {
		t.Fatalf("DefaultProvider.Kind = %q, want gemini", cfg.DefaultProvider.Kind)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORS should be disabled by default")
	}
}

func TestLoad_FileValues(t *testing.T) {
	clearStudioEnv(t)
	path := writeConfig(t, `
addr: ":9191"
log_format: json
log_level: debug
cors_origins: ["http://localhost:5173"]
media:
  max_video_frames: 0
  max_bytes_total: 1048576
conversations:
  ttl: 10m
  max_entries: 50
live:
  max_sessions: 2
  ping_interval: 7s
limits:
  rps: 0
  media_cost: 5
timeouts:
  handler: 45s
gemini:
  api_key: file-key
provider:
  kind: self_hosted
  endpoint: http://10.0.0.2:11434
  model: llava:latest
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9191" || cfg.LogFormat != LogFormatJSON || cfg.LogLevel != "debug" {
		t.Fatalf("addr/log mismatch: %q/%q/%q", cfg.Addr, cfg.LogFormat, cfg.LogLevel)
	}
	if _, ok := cfg.CORSAllowedOrigins["http://localhost:5173"]; !ok {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MaxVideoFrames != 0 || cfg.MaxMediaBytesTotal != 1<<20 || cfg.MaxMediaBytesPerPart != Default().MaxMediaBytesPerPart {
		t.Fatalf("media settings = %d/%d/%d", cfg.MaxVideoFrames, cfg.MaxMediaBytesPerPart, cfg.MaxMediaBytesTotal)
	}
	if cfg.ConversationTTL != 10*time.Minute || cfg.MaxConversations != 50 {
		t.Fatalf("conversation settings = %v/%d", cfg.ConversationTTL, cfg.MaxConversations)
	}
	if cfg.LiveMaxSessions != 2 || cfg.LiveWSPingInterval != 7*time.Second {
		t.Fatalf("live settings = %d/%v", cfg.LiveMaxSessions, cfg.LiveWSPingInterval)
	}
	if cfg.LimitRPS != 0 || cfg.LimitMediaCost != 5 {
		t.Fatalf("limits = %v/%d, want explicit 0 rps and media cost 5", cfg.LimitRPS, cfg.LimitMediaCost)
	}
	if cfg.HandlerTimeout != 45*time.Second {
		t.Fatalf("HandlerTimeout = %v", cfg.HandlerTimeout)
	}
	if cfg.LiveWSWriteTimeout != 5*time.Second {
		t.Fatalf("unset durations keep defaults, got %v", cfg.LiveWSWriteTimeout)
	}
	want := types.ProviderConfig{Kind: types.KindSelfHosted, Endpoint: "http://10.0.0.2:11434", Model: "llava:latest"}
	if diff := cmp.Diff(want, cfg.DefaultProvider); diff != "" {
		t.Fatalf("DefaultProvider mismatch (-want +got):\n%s", diff)
	}
	if cfg.GeminiAPIKey != "file-key" {
		t.Fatalf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearStudioEnv(t)
	path := writeConfig(t, "addr: \":9191\"\ngemini:\n  api_key: file-key\n")
	t.Setenv("VAI_STUDIO_ADDR", ":7070")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("VAI_STUDIO_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT", "3s")
	t.Setenv("VAI_STUDIO_RATE_LIMIT_RPS", "1.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("Addr = %q, want env value", cfg.Addr)
	}
	if cfg.GeminiAPIKey != "env-key" {
		t.Fatalf("GeminiAPIKey = %q, want env value", cfg.GeminiAPIKey)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins len=%d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if cfg.LiveWSWriteTimeout != 3*time.Second || cfg.LimitRPS != 1.5 {
		t.Fatalf("overrides = %v/%v", cfg.LiveWSWriteTimeout, cfg.LimitRPS)
	}
}

func TestLoad_StudioGeminiKeyWinsOverGenericName(t *testing.T) {
	clearStudioEnv(t)
	t.Setenv("GEMINI_API_KEY", "generic")
	t.Setenv("VAI_STUDIO_GEMINI_API_KEY", "studio")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.GeminiAPIKey != "studio" {
		t.Fatalf("GeminiAPIKey = %q, want studio", cfg.GeminiAPIKey)
	}
}

func TestLoad_OllamaKeyOnlyForOpenModelDefault(t *testing.T) {
	clearStudioEnv(t)
	t.Setenv("OLLAMA_API_KEY", "ollama-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.DefaultProvider.APIKey != "" {
		t.Fatalf("gemini default must not pick up OLLAMA_API_KEY")
	}

	t.Setenv("VAI_STUDIO_PROVIDER", "gateway")
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.DefaultProvider.APIKey != "ollama-key" {
		t.Fatalf("DefaultProvider.APIKey = %q", cfg.DefaultProvider.APIKey)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	clearStudioEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("missing file error = %v", err)
	}
	if _, err := Load(writeConfig(t, "adress: \":1\"\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := Load(writeConfig(t, "live:\n  ping_interval: soon\n")); err == nil || !strings.Contains(err.Error(), "live.ping_interval") {
		t.Fatalf("bad duration error = %v", err)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	clearStudioEnv(t)

	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
}

func TestLoadFromEnv_InvalidBounds(t *testing.T) {
	cases := []struct {
		name      string
		env       map[string]string
		errSubstr string
	}{
		{"log format", map[string]string{"VAI_STUDIO_LOG_FORMAT": "xml"}, "VAI_STUDIO_LOG_FORMAT"},
		{"log level", map[string]string{"VAI_STUDIO_LOG_LEVEL": "loud"}, "VAI_STUDIO_LOG_LEVEL"},
		{"body bytes", map[string]string{"VAI_STUDIO_MAX_BODY_BYTES": "0"}, "VAI_STUDIO_MAX_BODY_BYTES"},
		{"negative media budget", map[string]string{"VAI_STUDIO_MAX_MEDIA_BYTES_TOTAL": "-1"}, "VAI_STUDIO_MAX_MEDIA_BYTES"},
		{"conversation ttl", map[string]string{"VAI_STUDIO_CONVERSATION_TTL": "0s"}, "VAI_STUDIO_CONVERSATION_TTL"},
		{"live sessions", map[string]string{"VAI_STUDIO_LIVE_MAX_SESSIONS": "0"}, "VAI_STUDIO_LIVE_MAX_SESSIONS"},
		{"odd frame size", map[string]string{"VAI_STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES": "4097"}, "must be even"},
		{"write timeout", map[string]string{"VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT": "0s"}, "VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT"},
		{"negative rps", map[string]string{"VAI_STUDIO_RATE_LIMIT_RPS": "-1"}, "VAI_STUDIO_RATE_LIMIT_RPS"},
		{"negative media cost", map[string]string{"VAI_STUDIO_RATE_LIMIT_MEDIA_COST": "-2"}, "VAI_STUDIO_RATE_LIMIT_MEDIA_COST"},
		{"shutdown grace", map[string]string{"VAI_STUDIO_SHUTDOWN_GRACE_PERIOD": "0s"}, "VAI_STUDIO_SHUTDOWN_GRACE_PERIOD"},
		{"provider kind", map[string]string{"VAI_STUDIO_PROVIDER": "openai"}, "VAI_STUDIO_PROVIDER"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearStudioEnv(t)
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errSubstr) {
				t.Fatalf("error = %v, expected substring %q", err, tc.errSubstr)
			}
		})
	}
}

func TestLoadFromEnv_InvalidNumbersFallBackToDefaults(t *testing.T) {
	clearStudioEnv(t)
	t.Setenv("VAI_STUDIO_RATE_LIMIT_BURST", "lots")
	t.Setenv("VAI_STUDIO_READ_TIMEOUT", "later")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.LimitBurst != 10 || cfg.ReadTimeout != 60*time.Second {
		t.Fatalf("fallbacks = %d/%v", cfg.LimitBurst, cfg.ReadTimeout)
	}
}
