package limits

import (
	"fmt"
	"strings"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
)

// ValidateImage applies the per-part budget to a single inline image.
func ValidateImage(part types.MediaPart, param string, cfg config.Config) error {
	b := newBudget(cfg)
	return b.add(param, part.Data)
}

// ValidateFrames bounds a sampled video: the frame count first, then the
// decoded size of each frame and of all frames together.
func ValidateFrames(frames []types.MediaPart, cfg config.Config) error {
	if len(frames) == 0 {
		return core.NewValidationError("at least one frame is required", "frames")
	}
	if cfg.MaxVideoFrames > 0 && len(frames) > cfg.MaxVideoFrames {
		return core.NewValidationError(
			fmt.Sprintf("too many frames (max %d)", cfg.MaxVideoFrames),
			"frames",
		)
	}

	b := newBudget(cfg)
	for i, frame := range frames {
		param := fmt.Sprintf("frames[%d]", i)
		if err := frame.Validate(); err != nil {
			return core.NewValidationError(err.Error(), param)
		}
		if err := b.add(param, frame.Data); err != nil {
			return err
		}
	}
	return nil
}

type budget struct {
	perPart int64
	total   int64
	used    int64
}

func newBudget(cfg config.Config) *budget {
	return &budget{perPart: cfg.MaxMediaBytesPerPart, total: cfg.MaxMediaBytesTotal}
}

func (b *budget) add(param, b64 string) error {
	if b.perPart <= 0 && b.total <= 0 {
		return nil
	}
	decoded := estimateDecodedB64Bytes(b64)
	if b.perPart > 0 && decoded > b.perPart {
		return core.NewValidationError(
			fmt.Sprintf("decoded media %d bytes exceeds per-part limit %d", decoded, b.perPart),
			param,
		)
	}
	if b.total > 0 && b.used+decoded > b.total {
		return core.NewValidationError(
			fmt.Sprintf("decoded media total %d bytes exceeds limit %d", b.used+decoded, b.total),
			param,
		)
	}
	b.used += decoded
	return nil
}

func estimateDecodedB64Bytes(b64 string) int64 {
	// decoded ~= floor(len(b64) * 3/4) - padding, without decoding.
	n := int64(len(b64))
	if n <= 0 {
		return 0
	}
	pad := int64(0)
	if strings.HasSuffix(b64, "==") {
		pad = 2
	} else if strings.HasSuffix(b64, "=") {
		pad = 1
	}
	decoded := (n * 3 / 4) - pad
	if decoded < 0 {
		return 0
	}
	return decoded
}
