package ollama

import "net/http"

// Option configures the Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client for API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithoutRegistryAuth omits the Authorization header on model registry
// queries. Some gateways reject credentialed cross-origin preflights on the
// registry endpoint while still requiring the token for chat.
func WithoutRegistryAuth() Option {
	return func(p *Provider) {
		p.registryAuth = false
	}
}
