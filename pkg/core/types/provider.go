package types

// ProviderKind selects the adapter that serves a request.
type ProviderKind string

const (
	// KindGemini is the hosted multimodal API.
	KindGemini ProviderKind = "gemini"
	// KindGateway is the cloud open-model gateway.
	KindGateway ProviderKind = "gateway"
	// KindSelfHosted is a self-hosted open-model server.
	KindSelfHosted ProviderKind = "self_hosted"
)

// Kinds lists every provider kind in display order.
func Kinds() []ProviderKind {
	return []ProviderKind{KindGemini, KindGateway, KindSelfHosted}
}

// Valid reports whether k names a known provider kind.
func (k ProviderKind) Valid() bool {
	switch k {
	case KindGemini, KindGateway, KindSelfHosted:
		return true
	default:
		return false
	}
}

// OpenModel reports whether k is served by the open-model adapter.
func (k ProviderKind) OpenModel() bool {
	return k == KindGateway || k == KindSelfHosted
}

// ProviderConfig is the caller-supplied provider selection. It is read on
// every call and never cached. Fields that do not apply to Kind are ignored.
type ProviderConfig struct {
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// Endpoint is the open-model server base URL (gateway, self_hosted).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIKey is the hosted API key (gemini) or gateway bearer token (gateway).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the open-model name (gateway, self_hosted).
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// SpeechEndpoint is the local speech synthesis URL (self_hosted).
	SpeechEndpoint string `json:"speech_endpoint,omitempty" yaml:"speech_endpoint,omitempty"`
}

const (
	DefaultGatewayEndpoint    = "https://ollama.com"
	DefaultSelfHostedEndpoint = "http://127.0.0.1:11434"
	DefaultSpeechEndpoint     = "http://127.0.0.1:5002/api/tts"
)

// EndpointOrDefault returns the configured endpoint or the default for Kind.
func (c ProviderConfig) EndpointOrDefault() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	switch c.Kind {
	case KindGateway:
		return DefaultGatewayEndpoint
	case KindSelfHosted:
		return DefaultSelfHostedEndpoint
	default:
		return ""
	}
}

// SpeechEndpointOrDefault returns the configured speech endpoint or the
// local default.
func (c ProviderConfig) SpeechEndpointOrDefault() string {
	if c.SpeechEndpoint != "" {
		return c.SpeechEndpoint
	}
	return DefaultSpeechEndpoint
}
