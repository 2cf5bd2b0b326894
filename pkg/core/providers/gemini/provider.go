// Package gemini implements the hosted multimodal adapter on top of the
// Google Gen AI SDK, plus a websocket client for the live audio API.
//
// Speech synthesis returns raw PCM16 (24 kHz mono), which must be wrapped
// in a WAV container before playback.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

const (
	// LiveURL is the default live session endpoint.
	LiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultVoice is the prebuilt voice used when none is selected.
	DefaultVoice = "Kore"

	// ReasoningBudget is the thinking budget for complex queries.
	ReasoningBudget int32 = 32768
)

// Models selects the model per operation.
type Models struct {
	Chat      string
	Image     string
	ImageEdit string
	Analysis  string
	Video     string
	Search    string
	Reasoning string
	Speech    string
	Live      string
}

// DefaultModels are used unless overridden with WithModels.
var DefaultModels = Models{
	Chat:      "gemini-2.5-flash",
	Image:     "imagen-4.0-generate-001",
	ImageEdit: "gemini-2.5-flash-image",
	Analysis:  "gemini-2.5-flash",
	Video:     "gemini-2.5-pro",
	Search:    "gemini-2.5-flash",
	Reasoning: "gemini-2.5-pro",
	Speech:    "gemini-2.5-flash-preview-tts",
	Live:      "gemini-2.5-flash-native-audio-preview-09-2025",
}

func (m Models) merge(o Models) Models {
	pick := func(a, b string) string {
		if strings.TrimSpace(b) != "" {
			return b
		}
		return a
	}
	return Models{
		Chat:      pick(m.Chat, o.Chat),
		Image:     pick(m.Image, o.Image),
		ImageEdit: pick(m.ImageEdit, o.ImageEdit),
		Analysis:  pick(m.Analysis, o.Analysis),
		Video:     pick(m.Video, o.Video),
		Search:    pick(m.Search, o.Search),
		Reasoning: pick(m.Reasoning, o.Reasoning),
		Speech:    pick(m.Speech, o.Speech),
		Live:      pick(m.Live, o.Live),
	}
}

// Provider implements the hosted multimodal adapter.
type Provider struct {
	apiKey     string
	baseURL    string
	liveURL    string
	httpClient *http.Client
	models     Models
	logger     *slog.Logger

	client *genai.Client
}

// New creates a Gemini adapter. The SDK client is built eagerly; no network
// call is made.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, core.NewConfigurationError("gemini api key is required", "api_key")
	}
	p := &Provider{
		apiKey:     apiKey,
		liveURL:    LiveURL,
		httpClient: &http.Client{},
		models:     DefaultModels,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	cc := &genai.ClientConfig{
		APIKey:     p.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, core.NewConfigurationError(fmt.Sprintf("gemini client: %v", err), "api_key")
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() types.ProviderKind {
	return types.KindGemini
}

// SendChatMessage replays the history into a fresh SDK chat and sends the
// new message.
func (p *Provider) SendChatMessage(ctx context.Context, req *types.ChatRequest) (string, error) {
	chat, err := p.client.Chats.Create(ctx, p.models.Chat, chatConfig(req.System), chatHistory(req.History))
	if err != nil {
		return "", p.wrapErr(types.OpSendChatMessage, err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: req.Message})
	if err != nil {
		return "", p.wrapErr(types.OpSendChatMessage, err)
	}
	return resp.Text(), nil
}

// ComplexQuery answers with an extended thinking budget.
func (p *Provider) ComplexQuery(ctx context.Context, req *types.QueryRequest) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.models.Reasoning, genai.Text(req.Prompt), reasoningConfig(req.System))
	if err != nil {
		return "", p.wrapErr(types.OpComplexQuery, err)
	}
	return resp.Text(), nil
}

// GenerateImage renders one JPEG at the requested aspect ratio.
func (p *Provider) GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.MediaPart, error) {
	if !req.AspectRatio.Valid() {
		return nil, core.NewValidationError(fmt.Sprintf("unsupported aspect ratio %q", req.AspectRatio), "aspect_ratio")
	}
	resp, err := p.client.Models.GenerateImages(ctx, p.models.Image, req.Prompt, imageConfig(req.AspectRatio))
	if err != nil {
		return nil, p.wrapErr(types.OpGenerateImage, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, p.malformed(types.OpGenerateImage, "response contained no image")
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = imageMIMEType
	}
	return &types.MediaPart{Data: audio.EncodeBase64(img.ImageBytes), MIMEType: mime}, nil
}

// EditImage applies the prompt to the source image and returns the first
// image part of the response.
func (p *Provider) EditImage(ctx context.Context, req *types.EditImageRequest) (*types.MediaPart, error) {
	parts, err := mediaParts([]types.MediaPart{req.Image}, "image")
	if err != nil {
		return nil, err
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	resp, err := p.client.Models.GenerateContent(ctx, p.models.ImageEdit, userContent(parts), editConfig())
	if err != nil {
		return nil, p.wrapErr(types.OpEditImage, err)
	}
	blob := firstInlineData(resp)
	if blob == nil {
		return nil, p.malformed(types.OpEditImage, "response contained no image")
	}
	return &types.MediaPart{Data: audio.EncodeBase64(blob.Data), MIMEType: blob.MIMEType}, nil
}

func (p *Provider) AnalyzeImage(ctx context.Context, req *types.AnalyzeImageRequest) (string, error) {
	parts, err := mediaParts([]types.MediaPart{req.Image}, "image")
	if err != nil {
		return "", err
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	resp, err := p.client.Models.GenerateContent(ctx, p.models.Analysis, userContent(parts), nil)
	if err != nil {
		return "", p.wrapErr(types.OpAnalyzeImage, err)
	}
	return resp.Text(), nil
}

// AnalyzeVideoFrames sends the prompt followed by the frames in order.
func (p *Provider) AnalyzeVideoFrames(ctx context.Context, req *types.AnalyzeVideoRequest) (string, error) {
	if len(req.Frames) == 0 {
		return "", core.NewValidationError("at least one frame is required", "frames")
	}
	frames, err := mediaParts(req.Frames, "frames")
	if err != nil {
		return "", err
	}
	parts := append([]*genai.Part{genai.NewPartFromText(req.Prompt)}, frames...)

	resp, err := p.client.Models.GenerateContent(ctx, p.models.Video, userContent(parts), nil)
	if err != nil {
		return "", p.wrapErr(types.OpAnalyzeVideoFrames, err)
	}
	return resp.Text(), nil
}

// GroundedSearch answers with web or place grounding and returns the
// grounding sources as citations.
func (p *Provider) GroundedSearch(ctx context.Context, req *types.SearchRequest) (*types.SearchResult, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.models.Search, genai.Text(req.Prompt), searchConfig(req))
	if err != nil {
		return nil, p.wrapErr(types.OpGroundedSearch, err)
	}
	return &types.SearchResult{
		Text:      resp.Text(),
		Citations: citations(resp),
	}, nil
}

// SynthesizeSpeech returns base64 PCM16. The voice selection is validated
// before any request is made.
func (p *Provider) SynthesizeSpeech(ctx context.Context, req *types.SpeechRequest) (*types.SpeechResult, error) {
	cfg, err := speechConfig(req.Voice)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.models.Speech, genai.Text(speechPrompt(req)), cfg)
	if err != nil {
		return nil, p.wrapErr(types.OpSynthesizeSpeech, err)
	}
	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, p.malformed(types.OpSynthesizeSpeech, "response contained no audio")
	}
	return &types.SpeechResult{
		Data:       audio.EncodeBase64(blob.Data),
		Encoding:   types.EncodingPCM16,
		SampleRate: sampleRateFromMIME(blob.MIMEType, audio.OutputSampleRate),
		Channels:   1,
	}, nil
}
