package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/apierror"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
)

// fakeAdapter implements every capability and records calls per operation.
type fakeAdapter struct {
	kind types.ProviderKind
	err  error

	speech *types.SpeechResult
	models []string
	live   core.LiveConn

	mu        sync.Mutex
	calls     map[types.Operation]int
	lastChat  *types.ChatRequest
	lastQuery *types.QueryRequest
	lastCfg   types.ProviderConfig
}

func (f *fakeAdapter) Name() types.ProviderKind { return f.kind }

func (f *fakeAdapter) record(op types.Operation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[types.Operation]int)
	}
	f.calls[op]++
}

func (f *fakeAdapter) count(op types.Operation) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAdapter) SendChatMessage(ctx context.Context, req *types.ChatRequest) (string, error) {
	f.record(types.OpSendChatMessage)
	f.mu.Lock()
	f.lastChat = req
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "reply to " + req.Message, nil
}

func (f *fakeAdapter) ComplexQuery(ctx context.Context, req *types.QueryRequest) (string, error) {
	f.record(types.OpComplexQuery)
	f.mu.Lock()
	f.lastQuery = req
	f.mu.Unlock()
	return "answer: " + req.Prompt, f.err
}

func (f *fakeAdapter) GenerateImage(ctx context.Context, req *types.ImageRequest) (*types.MediaPart, error) {
	f.record(types.OpGenerateImage)
	return &types.MediaPart{Data: "aW1n", MIMEType: "image/jpeg"}, f.err
}

func (f *fakeAdapter) EditImage(ctx context.Context, req *types.EditImageRequest) (*types.MediaPart, error) {
	f.record(types.OpEditImage)
	return &types.MediaPart{Data: "ZWRpdA==", MIMEType: "image/png"}, f.err
}

func (f *fakeAdapter) AnalyzeImage(ctx context.Context, req *types.AnalyzeImageRequest) (string, error) {
	f.record(types.OpAnalyzeImage)
	return "a cat", f.err
}

func (f *fakeAdapter) AnalyzeVideoFrames(ctx context.Context, req *types.AnalyzeVideoRequest) (string, error) {
	f.record(types.OpAnalyzeVideoFrames)
	return "a video", f.err
}

func (f *fakeAdapter) GroundedSearch(ctx context.Context, req *types.SearchRequest) (*types.SearchResult, error) {
	f.record(types.OpGroundedSearch)
	if f.err != nil {
		return nil, f.err
	}
	return &types.SearchResult{Text: "found"}, nil
}

func (f *fakeAdapter) SynthesizeSpeech(ctx context.Context, req *types.SpeechRequest) (*types.SpeechResult, error) {
	f.record(types.OpSynthesizeSpeech)
	if f.err != nil {
		return nil, f.err
	}
	return f.speech, nil
}

func (f *fakeAdapter) ListModels(ctx context.Context) ([]string, error) {
	f.record(types.OpListModels)
	if f.err != nil {
		return nil, f.err
	}
	return f.models, nil
}

func (f *fakeAdapter) OpenLiveSession(ctx context.Context, cfg *types.LiveConfig) (core.LiveConn, error) {
	f.record(types.OpOpenLiveSession)
	if f.err != nil {
		return nil, f.err
	}
	return f.live, nil
}

// newTestRouter routes every kind to adapter and remembers the last
// configuration it was built for.
func newTestRouter(adapter *fakeAdapter) *core.Router {
	return core.NewRouter(core.AdapterFactoryFunc(func(cfg types.ProviderConfig) (core.Provider, error) {
		adapter.mu.Lock()
		adapter.lastCfg = cfg
		adapter.kind = cfg.Kind
		adapter.mu.Unlock()
		return adapter, nil
	}))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.HandlerTimeout = 5 * time.Second
	return cfg
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) *core.Error {
	t.Helper()
	var env apierror.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal error envelope %q: %v", rr.Body.String(), err)
	}
	if env.Error == nil {
		t.Fatalf("response has no error: %s", rr.Body.String())
	}
	return env.Error
}
