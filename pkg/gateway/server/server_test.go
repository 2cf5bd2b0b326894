package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
)

type echoAdapter struct{}

func (echoAdapter) Name() types.ProviderKind { return types.KindGemini }

func (echoAdapter) ComplexQuery(ctx context.Context, req *types.QueryRequest) (string, error) {
	return "echo: " + req.Prompt, nil
}

func (echoAdapter) SendChatMessage(ctx context.Context, req *types.ChatRequest) (string, error) {
	return "echo: " + req.Message, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	factory := core.AdapterFactoryFunc(func(types.ProviderConfig) (core.Provider, error) {
		return echoAdapter{}, nil
	})
	return New(config.Default(), logger, WithAdapterFactory(factory))
}

func TestServer_UnknownRoute_ReturnsJSON404(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rr.Body.String(), `"type":"not_found_error"`) {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestServer_OperationRoutesReachAdapter(t *testing.T) {
	s := newTestServer(t)

	for path, body := range map[string]string{
		"/v1/query": `{"request":{"prompt":"hi"}}`,
		"/v1/chat":  `{"request":{"message":"hi"}}`,
	} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		s.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%q", path, rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), "echo: hi") {
			t.Fatalf("%s body=%q", path, rr.Body.String())
		}
	}
}

func TestServer_CapabilityMismatchIsReported(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/images/generate", strings.NewReader(`{"request":{"prompt":"a fox"}}`))
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), string(core.ErrUnsupportedOperation)) {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestServer_ModelsAndLiveRoutesReachable(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"models":[]`) {
		t.Fatalf("models status=%d body=%q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/live", nil))
	if rr.Code == http.StatusNotFound {
		t.Fatal("/v1/live unexpectedly returned 404")
	}
}

func TestServer_ReadyReflectsDraining(t *testing.T) {
	s := newTestServer(t)
	s.Lifecycle().SetDraining(true)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}
