package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	Addr string

	LogFormat LogFormat
	LogLevel  string

	// If true, client identity may be derived from proxy headers like X-Forwarded-For.
	// This should only be enabled when the studio is deployed behind a trusted proxy/LB.
	TrustProxyHeaders bool

	MaxBodyBytes int64

	// Inline media budgets for image and video operations; 0 disables.
	MaxVideoFrames       int
	MaxMediaBytesPerPart int64
	MaxMediaBytesTotal   int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Chat conversations kept in memory between /v1/chat calls.
	ConversationTTL  time.Duration
	MaxConversations int

	// Live WebSocket mode (/v1/live).
	LiveMaxSessions         int
	LiveMaxSessionDuration  time.Duration
	LiveMaxAudioFrameBytes  int
	LiveMaxJSONMessageBytes int64
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveHandshakeTimeout    time.Duration

	// In-memory limits (per client).
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int
	// LimitMediaCost is how many bucket tokens an image, video or speech call draws.
	LimitMediaCost int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration

	// Hosted adapter defaults. A request's own api_key always wins.
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiLiveURL string

	// DefaultProvider is used when a request omits its provider block.
	DefaultProvider types.ProviderConfig
}

// Default returns the built-in configuration before any file or environment
// overrides are applied.
func Default() Config {
	return Config{
		Addr:                          ":8080",
		LogFormat:                     LogFormatText,
		LogLevel:                      "info",
		MaxBodyBytes:                  32 << 20, // 32 MiB, video frames travel inline
		MaxVideoFrames:                60,
		MaxMediaBytesPerPart:          8 << 20,
		MaxMediaBytesTotal:            24 << 20,
		CORSAllowedOrigins:            make(map[string]struct{}),
		ConversationTTL:               30 * time.Minute,
		MaxConversations:              1000,
		LiveMaxSessions:               8,
		LiveMaxSessionDuration:        30 * time.Minute,
		LiveMaxAudioFrameBytes:        16384,
		LiveMaxJSONMessageBytes:       64 * 1024,
		LiveWSPingInterval:            20 * time.Second,
		LiveWSWriteTimeout:            5 * time.Second,
		LiveHandshakeTimeout:          5 * time.Second,
		LimitRPS:                      5.0,
		LimitBurst:                    10,
		LimitMaxConcurrentRequests:    8,
		LimitMediaCost:                3,
		ReadHeaderTimeout:             10 * time.Second,
		ReadTimeout:                   60 * time.Second,
		HandlerTimeout:                3 * time.Minute,
		ShutdownGracePeriod:           30 * time.Second,
		UpstreamConnectTimeout:        5 * time.Second,
		UpstreamResponseHeaderTimeout: 2 * time.Minute,
		DefaultProvider:               types.ProviderConfig{Kind: types.KindGemini},
	}
}

// fileConfig is the YAML shape of Config. Durations are Go duration strings
// ("15s", "2m").
type fileConfig struct {
	Addr              string   `yaml:"addr"`
	LogFormat         string   `yaml:"log_format"`
	LogLevel          string   `yaml:"log_level"`
	TrustProxyHeaders *bool    `yaml:"trust_proxy_headers"`
	MaxBodyBytes      int64    `yaml:"max_body_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`

	Media struct {
		MaxVideoFrames  *int   `yaml:"max_video_frames"`
		MaxBytesPerPart *int64 `yaml:"max_bytes_per_part"`
		MaxBytesTotal   *int64 `yaml:"max_bytes_total"`
	} `yaml:"media"`

	Conversations struct {
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
	} `yaml:"conversations"`

	Live struct {
		MaxSessions         int    `yaml:"max_sessions"`
		MaxSessionDuration  string `yaml:"max_session_duration"`
		MaxAudioFrameBytes  int    `yaml:"max_audio_frame_bytes"`
		MaxJSONMessageBytes int64  `yaml:"max_json_message_bytes"`
		PingInterval        string `yaml:"ping_interval"`
		WriteTimeout        string `yaml:"write_timeout"`
		HandshakeTimeout    string `yaml:"handshake_timeout"`
	} `yaml:"live"`

	Limits struct {
		RPS                   *float64 `yaml:"rps"`
		Burst                 *int     `yaml:"burst"`
		MaxConcurrentRequests *int     `yaml:"max_concurrent_requests"`
		MediaCost             *int     `yaml:"media_cost"`
	} `yaml:"limits"`

	Timeouts struct {
		ReadHeader             string `yaml:"read_header"`
		Read                   string `yaml:"read"`
		Handler                string `yaml:"handler"`
		ShutdownGrace          string `yaml:"shutdown_grace"`
		UpstreamConnect        string `yaml:"upstream_connect"`
		UpstreamResponseHeader string `yaml:"upstream_response_header"`
	} `yaml:"timeouts"`

	Gemini struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		LiveURL string `yaml:"live_url"`
	} `yaml:"gemini"`

	Provider *types.ProviderConfig `yaml:"provider"`
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and VAI_STUDIO_* environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeFile(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv is Load without a config file.
func LoadFromEnv() (Config, error) {
	return Load("")
}

func decodeFile(data []byte, cfg *Config) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	setString(&cfg.Addr, fc.Addr)
	if fc.LogFormat != "" {
		cfg.LogFormat = LogFormat(strings.ToLower(fc.LogFormat))
	}
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.TrustProxyHeaders != nil {
		cfg.TrustProxyHeaders = *fc.TrustProxyHeaders
	}
	if fc.MaxBodyBytes != 0 {
		cfg.MaxBodyBytes = fc.MaxBodyBytes
	}
	for _, origin := range fc.CORSOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins[origin] = struct{}{}
		}
	}

	if fc.Media.MaxVideoFrames != nil {
		cfg.MaxVideoFrames = *fc.Media.MaxVideoFrames
	}
	if fc.Media.MaxBytesPerPart != nil {
		cfg.MaxMediaBytesPerPart = *fc.Media.MaxBytesPerPart
	}
	if fc.Media.MaxBytesTotal != nil {
		cfg.MaxMediaBytesTotal = *fc.Media.MaxBytesTotal
	}

	if fc.Conversations.MaxEntries != 0 {
		cfg.MaxConversations = fc.Conversations.MaxEntries
	}
	if fc.Live.MaxSessions != 0 {
		cfg.LiveMaxSessions = fc.Live.MaxSessions
	}
	if fc.Live.MaxAudioFrameBytes != 0 {
		cfg.LiveMaxAudioFrameBytes = fc.Live.MaxAudioFrameBytes
	}
	if fc.Live.MaxJSONMessageBytes != 0 {
		cfg.LiveMaxJSONMessageBytes = fc.Live.MaxJSONMessageBytes
	}
	if fc.Limits.RPS != nil {
		cfg.LimitRPS = *fc.Limits.RPS
	}
	if fc.Limits.Burst != nil {
		cfg.LimitBurst = *fc.Limits.Burst
	}
	if fc.Limits.MaxConcurrentRequests != nil {
		cfg.LimitMaxConcurrentRequests = *fc.Limits.MaxConcurrentRequests
	}
	if fc.Limits.MediaCost != nil {
		cfg.LimitMediaCost = *fc.Limits.MediaCost
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"conversations.ttl", fc.Conversations.TTL, &cfg.ConversationTTL},
		{"live.max_session_duration", fc.Live.MaxSessionDuration, &cfg.LiveMaxSessionDuration},
		{"live.ping_interval", fc.Live.PingInterval, &cfg.LiveWSPingInterval},
		{"live.write_timeout", fc.Live.WriteTimeout, &cfg.LiveWSWriteTimeout},
		{"live.handshake_timeout", fc.Live.HandshakeTimeout, &cfg.LiveHandshakeTimeout},
		{"timeouts.read_header", fc.Timeouts.ReadHeader, &cfg.ReadHeaderTimeout},
		{"timeouts.read", fc.Timeouts.Read, &cfg.ReadTimeout},
		{"timeouts.handler", fc.Timeouts.Handler, &cfg.HandlerTimeout},
		{"timeouts.shutdown_grace", fc.Timeouts.ShutdownGrace, &cfg.ShutdownGracePeriod},
		{"timeouts.upstream_connect", fc.Timeouts.UpstreamConnect, &cfg.UpstreamConnectTimeout},
		{"timeouts.upstream_response_header", fc.Timeouts.UpstreamResponseHeader, &cfg.UpstreamResponseHeaderTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		*d.dst = v
	}

	setString(&cfg.GeminiAPIKey, fc.Gemini.APIKey)
	setString(&cfg.GeminiBaseURL, fc.Gemini.BaseURL)
	setString(&cfg.GeminiLiveURL, fc.Gemini.LiveURL)
	if fc.Provider != nil {
		cfg.DefaultProvider = *fc.Provider
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = envOr("VAI_STUDIO_ADDR", cfg.Addr)
	cfg.LogFormat = LogFormat(strings.ToLower(envOr("VAI_STUDIO_LOG_FORMAT", string(cfg.LogFormat))))
	cfg.LogLevel = envOr("VAI_STUDIO_LOG_LEVEL", cfg.LogLevel)
	cfg.TrustProxyHeaders = envBoolOr("VAI_STUDIO_TRUST_PROXY_HEADERS", cfg.TrustProxyHeaders)
	cfg.MaxBodyBytes = envInt64Or("VAI_STUDIO_MAX_BODY_BYTES", cfg.MaxBodyBytes)
	cfg.MaxVideoFrames = envIntOr("VAI_STUDIO_MAX_VIDEO_FRAMES", cfg.MaxVideoFrames)
	cfg.MaxMediaBytesPerPart = envInt64Or("VAI_STUDIO_MAX_MEDIA_BYTES_PER_PART", cfg.MaxMediaBytesPerPart)
	cfg.MaxMediaBytesTotal = envInt64Or("VAI_STUDIO_MAX_MEDIA_BYTES_TOTAL", cfg.MaxMediaBytesTotal)
	cfg.ConversationTTL = envDurationOr("VAI_STUDIO_CONVERSATION_TTL", cfg.ConversationTTL)
	cfg.MaxConversations = envIntOr("VAI_STUDIO_MAX_CONVERSATIONS", cfg.MaxConversations)
	cfg.LiveMaxSessions = envIntOr("VAI_STUDIO_LIVE_MAX_SESSIONS", cfg.LiveMaxSessions)
	cfg.LiveMaxSessionDuration = envDurationOr("VAI_STUDIO_LIVE_MAX_DURATION", cfg.LiveMaxSessionDuration)
	cfg.LiveMaxAudioFrameBytes = envIntOr("VAI_STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES", cfg.LiveMaxAudioFrameBytes)
	cfg.LiveMaxJSONMessageBytes = envInt64Or("VAI_STUDIO_LIVE_MAX_JSON_MESSAGE_BYTES", cfg.LiveMaxJSONMessageBytes)
	cfg.LiveWSPingInterval = envDurationOr("VAI_STUDIO_LIVE_WS_PING_INTERVAL", cfg.LiveWSPingInterval)
	cfg.LiveWSWriteTimeout = envDurationOr("VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT", cfg.LiveWSWriteTimeout)
	cfg.LiveHandshakeTimeout = envDurationOr("VAI_STUDIO_LIVE_HANDSHAKE_TIMEOUT", cfg.LiveHandshakeTimeout)
	cfg.LimitRPS = envFloat64Or("VAI_STUDIO_RATE_LIMIT_RPS", cfg.LimitRPS)
	cfg.LimitBurst = envIntOr("VAI_STUDIO_RATE_LIMIT_BURST", cfg.LimitBurst)
	cfg.LimitMaxConcurrentRequests = envIntOr("VAI_STUDIO_MAX_CONCURRENT_REQUESTS", cfg.LimitMaxConcurrentRequests)
	cfg.LimitMediaCost = envIntOr("VAI_STUDIO_RATE_LIMIT_MEDIA_COST", cfg.LimitMediaCost)
	cfg.ReadHeaderTimeout = envDurationOr("VAI_STUDIO_READ_HEADER_TIMEOUT", cfg.ReadHeaderTimeout)
	cfg.ReadTimeout = envDurationOr("VAI_STUDIO_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.HandlerTimeout = envDurationOr("VAI_STUDIO_TOTAL_REQUEST_TIMEOUT", cfg.HandlerTimeout)
	cfg.ShutdownGracePeriod = envDurationOr("VAI_STUDIO_SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.UpstreamConnectTimeout = envDurationOr("VAI_STUDIO_CONNECT_TIMEOUT", cfg.UpstreamConnectTimeout)
	cfg.UpstreamResponseHeaderTimeout = envDurationOr("VAI_STUDIO_RESPONSE_HEADER_TIMEOUT", cfg.UpstreamResponseHeaderTimeout)

	cfg.GeminiAPIKey = envOr("VAI_STUDIO_GEMINI_API_KEY", envOr("GEMINI_API_KEY", cfg.GeminiAPIKey))
	cfg.GeminiBaseURL = envOr("VAI_STUDIO_GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.GeminiLiveURL = envOr("VAI_STUDIO_GEMINI_LIVE_URL", cfg.GeminiLiveURL)

	cfg.DefaultProvider.Kind = types.ProviderKind(envOr("VAI_STUDIO_PROVIDER", string(cfg.DefaultProvider.Kind)))
	cfg.DefaultProvider.Endpoint = envOr("VAI_STUDIO_OLLAMA_ENDPOINT", cfg.DefaultProvider.Endpoint)
	cfg.DefaultProvider.Model = envOr("VAI_STUDIO_OLLAMA_MODEL", cfg.DefaultProvider.Model)
	cfg.DefaultProvider.SpeechEndpoint = envOr("VAI_STUDIO_SPEECH_ENDPOINT", cfg.DefaultProvider.SpeechEndpoint)
	if cfg.DefaultProvider.Kind.OpenModel() {
		cfg.DefaultProvider.APIKey = envOr("OLLAMA_API_KEY", cfg.DefaultProvider.APIKey)
	}

	for _, origin := range splitCSV(os.Getenv("VAI_STUDIO_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("VAI_STUDIO_LOG_FORMAT must be one of text|json")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("VAI_STUDIO_LOG_LEVEL must be one of debug|info|warn|error")
	}
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("VAI_STUDIO_ADDR must not be empty")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("VAI_STUDIO_MAX_BODY_BYTES must be > 0")
	}
	if c.MaxVideoFrames < 0 || c.MaxMediaBytesPerPart < 0 || c.MaxMediaBytesTotal < 0 {
		return fmt.Errorf("VAI_STUDIO_MAX_VIDEO_FRAMES and VAI_STUDIO_MAX_MEDIA_BYTES_* must be >= 0")
	}
	if c.ConversationTTL <= 0 {
		return fmt.Errorf("VAI_STUDIO_CONVERSATION_TTL must be > 0")
	}
	if c.MaxConversations <= 0 {
		return fmt.Errorf("VAI_STUDIO_MAX_CONVERSATIONS must be > 0")
	}
	if c.LiveMaxSessions <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_MAX_SESSIONS must be > 0")
	}
	if c.LiveMaxSessionDuration <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_MAX_DURATION must be > 0")
	}
	if c.LiveMaxAudioFrameBytes <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if c.LiveMaxAudioFrameBytes%2 != 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES must be even (16-bit samples)")
	}
	if c.LiveMaxJSONMessageBytes <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if c.LiveWSPingInterval <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if c.LiveWSWriteTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if c.LiveHandshakeTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if c.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_READ_HEADER_TIMEOUT must be > 0")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_READ_TIMEOUT must be > 0")
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("VAI_STUDIO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if c.UpstreamConnectTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_CONNECT_TIMEOUT must be > 0")
	}
	if c.UpstreamResponseHeaderTimeout <= 0 {
		return fmt.Errorf("VAI_STUDIO_RESPONSE_HEADER_TIMEOUT must be > 0")
	}
	if c.LimitRPS < 0 {
		return fmt.Errorf("VAI_STUDIO_RATE_LIMIT_RPS must be >= 0")
	}
	if c.LimitBurst < 0 {
		return fmt.Errorf("VAI_STUDIO_RATE_LIMIT_BURST must be >= 0")
	}
	if c.LimitMaxConcurrentRequests < 0 {
		return fmt.Errorf("VAI_STUDIO_MAX_CONCURRENT_REQUESTS must be >= 0")
	}
	if c.LimitMediaCost < 0 {
		return fmt.Errorf("VAI_STUDIO_RATE_LIMIT_MEDIA_COST must be >= 0")
	}
	if c.DefaultProvider.Kind != "" && !c.DefaultProvider.Kind.Valid() {
		return fmt.Errorf("VAI_STUDIO_PROVIDER must be one of %s", kindList())
	}
	return nil
}

func kindList() string {
	kinds := types.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, "|")
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
