package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/gateway/lifecycle"
)

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler(t *testing.T) {
	type readyBody struct {
		OK           bool     `json:"ok"`
		Draining     bool     `json:"draining"`
		LiveSessions int      `json:"live_sessions"`
		Issues       []string `json:"issues"`
	}
	serve := func(t *testing.T, h ReadyHandler) (int, readyBody) {
		t.Helper()
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var body readyBody
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal %q: %v", rr.Body.String(), err)
		}
		return rr.Code, body
	}

	t.Run("ready", func(t *testing.T) {
		lc := &lifecycle.Lifecycle{}
		unregister := lc.Register("s1", lifecycle.SessionHandle{Cancel: func() {}})
		defer unregister()

		status, body := serve(t, ReadyHandler{Config: testConfig(), Lifecycle: lc})
		if status != http.StatusOK || !body.OK || body.LiveSessions != 1 {
			t.Fatalf("status=%d body=%+v", status, body)
		}
	})

	t.Run("draining", func(t *testing.T) {
		lc := &lifecycle.Lifecycle{}
		lc.SetDraining(true)

		status, body := serve(t, ReadyHandler{Config: testConfig(), Lifecycle: lc})
		if status != http.StatusServiceUnavailable || body.OK || !body.Draining {
			t.Fatalf("status=%d body=%+v", status, body)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.LogFormat = "xml"

		status, body := serve(t, ReadyHandler{Config: cfg})
		if status != http.StatusInternalServerError || body.OK || len(body.Issues) != 1 {
			t.Fatalf("status=%d body=%+v", status, body)
		}
	})
}

func TestNotFoundHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeError(t, rr); got.Type != core.ErrNotFound || got.Message != "no route for GET /v1/nope" {
		t.Fatalf("error = %+v", got)
	}
}
