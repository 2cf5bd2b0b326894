package gemini

import (
	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// firstInlineData returns the first inline blob of the first candidate.
func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData
		}
	}
	return nil
}

// citations flattens the grounding chunks of the first candidate, in order.
// The result is never nil.
func citations(resp *genai.GenerateContentResponse) []types.Citation {
	out := []types.Citation{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return out
	}
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.Web != nil && chunk.Web.URI != "":
			out = append(out, types.Citation{Title: chunk.Web.Title, URI: chunk.Web.URI})
		case chunk.Maps != nil && chunk.Maps.URI != "":
			out = append(out, types.Citation{Title: chunk.Maps.Title, URI: chunk.Maps.URI})
		}
	}
	return out
}
