package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

func TestFromError_ContextCanceled_Is408(t *testing.T) {
	ce, status := FromError(context.Canceled, "req_test")
	if status != http.StatusRequestTimeout {
		t.Fatalf("status=%d", status)
	}
	if ce.Type != core.ErrAPI {
		t.Fatalf("type=%q", ce.Type)
	}
	if ce.RequestID != "req_test" {
		t.Fatalf("request_id=%q", ce.RequestID)
	}
}

func TestFromError_Deadline_Is504(t *testing.T) {
	_, status := FromError(fmt.Errorf("chat: %w", context.DeadlineExceeded), "req_test")
	if status != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", status)
	}
}

func TestFromError_StatusByType(t *testing.T) {
	cases := []struct {
		err    *core.Error
		status int
	}{
		{core.NewUnsupportedOperationError(types.OpGenerateImage, types.KindGateway), http.StatusBadRequest},
		{core.NewValidationError("prompt is required", "prompt"), http.StatusBadRequest},
		{core.NewConfigurationError("api key is required", "api_key"), http.StatusBadRequest},
		{core.NewPermissionError("microphone access denied", nil), http.StatusForbidden},
		{core.NewTransportError(types.KindGemini, types.OpSendChatMessage, 429, "quota", nil), http.StatusBadGateway},
		{core.NewAPIError("no image returned"), http.StatusInternalServerError},
		{&core.Error{Type: core.ErrNotFound, Message: "unknown conversation"}, http.StatusNotFound},
		{&core.Error{Type: core.ErrRateLimit, Message: "rate limit exceeded"}, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Type), func(t *testing.T) {
			ce, status := FromError(tc.err, "req_1")
			if status != tc.status {
				t.Fatalf("status=%d, want %d", status, tc.status)
			}
			if ce.Type != tc.err.Type || ce.RequestID != "req_1" {
				t.Fatalf("error=%+v", ce)
			}
			if tc.err.RequestID != "" {
				t.Fatalf("FromError must not mutate the source error")
			}
		})
	}
}

func TestFromError_TransportWrappingTimeoutKeepsType(t *testing.T) {
	err := core.NewTransportError(types.KindSelfHosted, types.OpListModels, 0, "", context.DeadlineExceeded)
	ce, status := FromError(err, "req_1")
	if status != http.StatusBadGateway || ce.Type != core.ErrTransport {
		t.Fatalf("status=%d type=%q", status, ce.Type)
	}
}

func TestFromError_UnknownIsOpaque(t *testing.T) {
	ce, status := FromError(errors.New("dial tcp 10.0.0.1: secret detail"), "req_1")
	if status != http.StatusInternalServerError || ce.Message != "internal error" {
		t.Fatalf("status=%d message=%q", status, ce.Message)
	}
}
