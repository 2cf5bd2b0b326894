package core

import (
	"context"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Provider is implemented by every adapter. The operations an adapter serves
// are expressed through the capability interfaces below.
type Provider interface {
	Name() types.ProviderKind
}

type Chatter interface {
	Provider
	SendChatMessage(ctx context.Context, req *types.ChatRequest) (string, error)
}

// ComplexQuerier answers a single prompt that benefits from extended
// reasoning.
type ComplexQuerier interface {
	Provider
	ComplexQuery(ctx context.Context, req *types.QueryRequest) (string, error)
}

type ImageGenerator interface {
	Provider
	GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.MediaPart, error)
}

type ImageEditor interface {
	Provider
	EditImage(ctx context.Context, req *types.EditImageRequest) (*types.MediaPart, error)
}

type ImageAnalyzer interface {
	Provider
	AnalyzeImage(ctx context.Context, req *types.AnalyzeImageRequest) (string, error)
}

type VideoAnalyzer interface {
	Provider
	AnalyzeVideoFrames(ctx context.Context, req *types.AnalyzeVideoRequest) (string, error)
}

type GroundedSearcher interface {
	Provider
	GroundedSearch(ctx context.Context, req *types.SearchRequest) (*types.SearchResult, error)
}

// SpeechSynthesizer renders text to audio. Implementations document the
// encoding they return through SpeechResult.Encoding.
type SpeechSynthesizer interface {
	Provider
	SynthesizeSpeech(ctx context.Context, req *types.SpeechRequest) (*types.SpeechResult, error)
}

// ModelLister queries the provider's model registry. Names are sorted.
type ModelLister interface {
	Provider
	ListModels(ctx context.Context) ([]string, error)
}

type LiveConnector interface {
	Provider
	OpenLiveSession(ctx context.Context, cfg *types.LiveConfig) (LiveConn, error)
}

// LiveConn is an open bidirectional live session.
type LiveConn interface {
	// SendAudio transmits one base64 PCM16 frame at the input sample rate.
	SendAudio(ctx context.Context, b64 string) error

	// Events yields decoded server messages. It is closed when the session
	// ends; Err then reports why.
	Events() <-chan types.LiveEvent

	// Err returns the error that ended the session, or nil after a clean close.
	Err() error

	// Close requests the remote session close. It is safe to call more than once.
	Close() error
}

// supportTable is the static (provider, operation) support matrix.
var supportTable = map[types.ProviderKind]map[types.Operation]bool{
	types.KindGemini: {
		types.OpSendChatMessage:    true,
		types.OpComplexQuery:       true,
		types.OpGenerateImage:      true,
		types.OpEditImage:          true,
		types.OpAnalyzeImage:       true,
		types.OpAnalyzeVideoFrames: true,
		types.OpGroundedSearch:     true,
		types.OpSynthesizeSpeech:   true,
		types.OpOpenLiveSession:    true,
	},
	types.KindGateway: {
		types.OpSendChatMessage: true,
		types.OpComplexQuery:    true,
		types.OpAnalyzeImage:    true,
		types.OpListModels:      true,
	},
	types.KindSelfHosted: {
		types.OpSendChatMessage:  true,
		types.OpComplexQuery:     true,
		types.OpAnalyzeImage:     true,
		types.OpSynthesizeSpeech: true,
		types.OpListModels:       true,
	},
}

// Supports reports whether provider serves op.
func Supports(provider types.ProviderKind, op types.Operation) bool {
	return supportTable[provider][op]
}

// SupportedOperations lists the operations provider serves, in the order of
// types.Operations.
func SupportedOperations(provider types.ProviderKind) []types.Operation {
	out := make([]types.Operation, 0, len(supportTable[provider]))
	for _, op := range types.Operations() {
		if Supports(provider, op) {
			out = append(out, op)
		}
	}
	return out
}
