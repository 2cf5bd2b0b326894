package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// wrapErr converts SDK failures into transport errors carrying the upstream
// status and message. Context errors pass through unchanged.
func (p *Provider) wrapErr(op types.Operation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := core.AsError(err); ok {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return core.NewTransportError(types.KindGemini, op, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return core.NewTransportError(types.KindGemini, op, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return core.NewTransportError(types.KindGemini, op, 0, "", err)
}

func (p *Provider) malformed(op types.Operation, msg string) error {
	return core.NewTransportError(types.KindGemini, op, 0, "", fmt.Errorf("malformed response: %s", msg))
}
