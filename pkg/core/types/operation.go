package types

// Operation names a capability a provider may offer.
type Operation string

const (
	OpSendChatMessage    Operation = "send-chat-message"
	OpComplexQuery       Operation = "complex-query"
	OpGenerateImage      Operation = "generate-image"
	OpEditImage          Operation = "edit-image"
	OpAnalyzeImage       Operation = "analyze-image"
	OpAnalyzeVideoFrames Operation = "analyze-video-frames"
	OpGroundedSearch     Operation = "grounded-search"
	OpSynthesizeSpeech   Operation = "synthesize-speech"
	OpListModels         Operation = "list-models"
	OpOpenLiveSession    Operation = "open-live-session"
)

// Operations lists every operation.
func Operations() []Operation {
	return []Operation{
		OpSendChatMessage,
		OpComplexQuery,
		OpGenerateImage,
		OpEditImage,
		OpAnalyzeImage,
		OpAnalyzeVideoFrames,
		OpGroundedSearch,
		OpSynthesizeSpeech,
		OpListModels,
		OpOpenLiveSession,
	}
}
