package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
	"github.com/vango-go/vai-studio/pkg/gateway/limits"
)

// Envelope is the body of every operation call: the caller's provider
// configuration next to the operation request. A missing provider selects
// the configured default.
type Envelope[T any] struct {
	Provider *types.ProviderConfig `json:"provider,omitempty"`
	Request  T                     `json:"request"`
}

type TextResponse struct {
	Text string `json:"text"`
}

type ImageResponse struct {
	Image *types.MediaPart `json:"image"`
}

// Operations serves the single-shot studio operations. Each method returns
// the handler for one route.
type Operations struct {
	Config config.Config
	Router *core.Router
	Logger *slog.Logger
}

func (h Operations) Query() http.Handler {
	return serve(h, func(req *types.QueryRequest) error {
		return requirePrompt(req.Prompt, "prompt")
	}, h.Router.ComplexQuery, asText)
}

func (h Operations) GenerateImage() http.Handler {
	return serve(h, func(req *types.ImageRequest) error {
		if err := requirePrompt(req.Prompt, "prompt"); err != nil {
			return err
		}
		if !req.AspectRatio.Valid() {
			return core.NewValidationError("unsupported aspect ratio "+string(req.AspectRatio), "aspect_ratio")
		}
		return nil
	}, h.Router.GenerateImage, asImage)
}

func (h Operations) EditImage() http.Handler {
	return serve(h, func(req *types.EditImageRequest) error {
		if err := requirePrompt(req.Prompt, "prompt"); err != nil {
			return err
		}
		if err := requireMedia(req.Image, "image"); err != nil {
			return err
		}
		return limits.ValidateImage(req.Image, "image", h.Config)
	}, h.Router.EditImage, asImage)
}

func (h Operations) AnalyzeImage() http.Handler {
	return serve(h, func(req *types.AnalyzeImageRequest) error {
		if err := requirePrompt(req.Prompt, "prompt"); err != nil {
			return err
		}
		if err := requireMedia(req.Image, "image"); err != nil {
			return err
		}
		return limits.ValidateImage(req.Image, "image", h.Config)
	}, h.Router.AnalyzeImage, asText)
}

func (h Operations) AnalyzeVideo() http.Handler {
	return serve(h, func(req *types.AnalyzeVideoRequest) error {
		if err := requirePrompt(req.Prompt, "prompt"); err != nil {
			return err
		}
		return limits.ValidateFrames(req.Frames, h.Config)
	}, h.Router.AnalyzeVideoFrames, asText)
}

func (h Operations) Search() http.Handler {
	return serve(h, func(req *types.SearchRequest) error {
		return requirePrompt(req.Prompt, "prompt")
	}, h.Router.GroundedSearch, func(res *types.SearchResult) any {
		if res.Citations == nil {
			res.Citations = []types.Citation{}
		}
		return res
	})
}

// Speech answers with playable audio bytes rather than JSON. Raw PCM from
// the provider is wrapped in a WAV container first.
func (h Operations) Speech() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope[types.SpeechRequest]
		if !h.begin(w, r, &env) {
			return
		}
		req := &env.Request
		if err := requirePrompt(req.Text, "text"); err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}

		ctx, cancel := h.timeout(r.Context())
		defer cancel()
		res, err := h.Router.SynthesizeSpeech(ctx, h.provider(env.Provider), req)
		if err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}
		clip, err := audio.Playable(*res)
		if err != nil {
			writeErr(w, r, h.Logger, core.NewAPIError(err.Error()))
			return
		}

		w.Header().Set("Content-Type", clip.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(clip.Data)))
		if res.Encoding == types.EncodingPCM16 {
			rate := res.SampleRate
			if rate <= 0 {
				rate = audio.OutputSampleRate
			}
			w.Header().Set("X-Audio-Sample-Rate", strconv.Itoa(rate))
			w.Header().Set("X-Audio-Wrapped", "true")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(clip.Data)
	})
}

func serve[Req, Resp any](
	h Operations,
	validate func(*Req) error,
	call func(context.Context, types.ProviderConfig, *Req) (Resp, error),
	render func(Resp) any,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope[Req]
		if !h.begin(w, r, &env) {
			return
		}
		if err := validate(&env.Request); err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}

		ctx, cancel := h.timeout(r.Context())
		defer cancel()
		res, err := call(ctx, h.provider(env.Provider), &env.Request)
		if err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, render(res))
	})
}

// begin checks the method and decodes the envelope. It writes the error
// response itself and reports whether the handler should continue.
func (h Operations) begin(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := decodeStrict(w, r, h.Config.MaxBodyBytes, dst); err != nil {
		writeErr(w, r, h.Logger, err)
		return false
	}
	return true
}

func (h Operations) provider(p *types.ProviderConfig) types.ProviderConfig {
	if p == nil {
		return h.Config.DefaultProvider
	}
	return *p
}

func (h Operations) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.Config.HandlerTimeout > 0 {
		return context.WithTimeout(ctx, h.Config.HandlerTimeout)
	}
	return context.WithCancel(ctx)
}

func requirePrompt(s, param string) error {
	if strings.TrimSpace(s) == "" {
		return core.NewValidationError(param+" is required", param)
	}
	return nil
}

func requireMedia(m types.MediaPart, param string) error {
	if err := m.Validate(); err != nil {
		return core.NewValidationError(err.Error(), param)
	}
	return nil
}

func asText(s string) any { return TextResponse{Text: s} }

func asImage(m *types.MediaPart) any { return ImageResponse{Image: m} }
