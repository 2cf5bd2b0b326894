// Package ollama implements the open-model adapter for both the cloud
// gateway and self-hosted servers speaking the Ollama REST API.
//
// Speech synthesis is only available on self-hosted deployments, through an
// auxiliary endpoint that returns a ready-to-play container (WAV or MP3).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const (
	// DefaultChatModel is used for chat when no model is configured.
	DefaultChatModel = "llama3"

	// DefaultVisionModel is used for image analysis when no model is configured.
	DefaultVisionModel = "llava:latest"

	maxErrorBody = 64 << 10
)

// Provider talks to one open-model endpoint.
type Provider struct {
	kind           types.ProviderKind
	baseURL        *url.URL
	apiKey         string
	model          string
	speechEndpoint string
	registryAuth   bool
	httpClient     *http.Client
}

// New creates an adapter for cfg. The endpoint must be an absolute http or
// https URL; anything else is a configuration error.
func New(cfg types.ProviderConfig, opts ...Option) (*Provider, error) {
	if !cfg.Kind.OpenModel() {
		return nil, core.NewConfigurationError(fmt.Sprintf("provider %q is not an open-model provider", cfg.Kind), "kind")
	}
	base, err := parseEndpoint(cfg.EndpointOrDefault())
	if err != nil {
		return nil, core.NewConfigurationError(err.Error(), "endpoint")
	}

	p := &Provider{
		kind:           cfg.Kind,
		baseURL:        base,
		model:          strings.TrimSpace(cfg.Model),
		speechEndpoint: cfg.SpeechEndpointOrDefault(),
		registryAuth:   true,
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
	}
	// Only the cloud gateway takes a bearer token.
	if cfg.Kind == types.KindGateway {
		p.apiKey = strings.TrimSpace(cfg.APIKey)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q is not a valid URL", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute http(s) URL", raw)
	}
	return u, nil
}

// Name returns the provider kind this adapter was built for.
func (p *Provider) Name() types.ProviderKind {
	return p.kind
}

func (p *Provider) endpoint(path string) string {
	return p.baseURL.ResolveReference(&url.URL{Path: path}).String()
}

func (p *Provider) modelOr(fallback string) string {
	if p.model != "" {
		return p.model
	}
	return fallback
}

func (p *Provider) setHeaders(req *http.Request, withAuth bool) {
	req.Header.Set("Accept", "application/json")
	if withAuth && p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

// SendChatMessage posts the full history plus the new message to /api/chat.
func (p *Provider) SendChatMessage(ctx context.Context, req *types.ChatRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: mapRole(turn.Role), Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Message})

	return p.chat(ctx, types.OpSendChatMessage, &chatRequest{
		Model:    p.modelOr(DefaultChatModel),
		Messages: messages,
		Stream:   false,
	})
}

// ComplexQuery has no reasoning-budget equivalent here; it is served by the
// chat endpoint as a single user turn after the optional system prompt.
func (p *Provider) ComplexQuery(ctx context.Context, req *types.QueryRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	return p.chat(ctx, types.OpComplexQuery, &chatRequest{
		Model:    p.modelOr(DefaultChatModel),
		Messages: messages,
		Stream:   false,
	})
}

// AnalyzeImage sends the image inline as base64 alongside the prompt.
func (p *Provider) AnalyzeImage(ctx context.Context, req *types.AnalyzeImageRequest) (string, error) {
	if err := req.Image.Validate(); err != nil {
		return "", core.NewValidationError(err.Error(), "image")
	}
	return p.chat(ctx, types.OpAnalyzeImage, &chatRequest{
		Model: p.modelOr(DefaultVisionModel),
		Messages: []chatMessage{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{req.Image.Data},
		}},
		Stream: false,
	})
}

func (p *Provider) chat(ctx context.Context, op types.Operation, body *chatRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/api/chat"), bytes.NewReader(payload))
	if err != nil {
		return "", core.NewTransportError(p.kind, op, 0, "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.setHeaders(httpReq, true)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewTransportError(p.kind, op, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", p.parseError(resp, op)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", core.NewTransportError(p.kind, op, 0, "", fmt.Errorf("decode chat response: %w", err))
	}
	if out.Message == nil {
		return "", core.NewTransportError(p.kind, op, 0, "", fmt.Errorf("chat response has no message"))
	}
	return out.Message.Content, nil
}

// SynthesizeSpeech queries the auxiliary speech endpoint. The response body
// is returned as-is in the requested container format; multi-speaker voice
// selections are ignored.
func (p *Provider) SynthesizeSpeech(ctx context.Context, req *types.SpeechRequest) (*types.SpeechResult, error) {
	if p.kind != types.KindSelfHosted {
		return nil, core.NewUnsupportedOperationError(types.OpSynthesizeSpeech, p.kind)
	}
	format := req.Format
	switch format {
	case "":
		format = types.EncodingWAV
	case types.EncodingWAV, types.EncodingMP3:
	default:
		return nil, core.NewValidationError(fmt.Sprintf("format must be wav or mp3, got %q", format), "format")
	}

	endpoint, err := parseEndpoint(p.speechEndpoint)
	if err != nil {
		return nil, core.NewConfigurationError(err.Error(), "speech_endpoint")
	}
	q := endpoint.Query()
	q.Set("text", req.Text)
	q.Set("format", string(format))
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, core.NewTransportError(p.kind, types.OpSynthesizeSpeech, 0, "", err)
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewTransportError(p.kind, types.OpSynthesizeSpeech, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.parseError(resp, types.OpSynthesizeSpeech)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewTransportError(p.kind, types.OpSynthesizeSpeech, 0, "", fmt.Errorf("read speech response: %w", err))
	}
	if len(data) == 0 {
		return nil, core.NewTransportError(p.kind, types.OpSynthesizeSpeech, 0, "", fmt.Errorf("speech response is empty"))
	}
	return &types.SpeechResult{
		Data:     audio.EncodeBase64(data),
		Encoding: format,
	}, nil
}

// ListModels queries /api/tags and returns the model names sorted.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/api/tags"), nil)
	if err != nil {
		return nil, core.NewTransportError(p.kind, types.OpListModels, 0, "", err)
	}
	p.setHeaders(httpReq, p.registryAuth)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewTransportError(p.kind, types.OpListModels, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, p.parseError(resp, types.OpListModels)
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.NewTransportError(p.kind, types.OpListModels, 0, "", fmt.Errorf("decode tags response: %w", err))
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *Provider) parseError(resp *http.Response, op types.Operation) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return core.NewTransportError(p.kind, op, resp.StatusCode, strings.TrimSpace(string(body)), nil)
}

func mapRole(r types.Role) string {
	if r == types.RoleAssistant {
		return "assistant"
	}
	return "user"
}
