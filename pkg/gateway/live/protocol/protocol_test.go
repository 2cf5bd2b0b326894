package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

func TestDecodeClientMessage_Hello(t *testing.T) {
	raw := []byte(`{
		"type":"hello",
		"protocol_version":"1",
		"provider":{"kind":"gemini","api_key":"k"},
		"model":"live-model",
		"voice_name":"Puck",
		"system_instruction":"be brief"
	}`)

	msg, err := DecodeClientMessage(raw)
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("decoded type = %T, want ClientHello", msg)
	}
	if hello.Mode != ModeConverse {
		t.Fatalf("mode = %q, want default %q", hello.Mode, ModeConverse)
	}
	if hello.Transcribe() {
		t.Fatal("Transcribe() = true for converse mode")
	}
	want := types.LiveConfig{Model: "live-model", VoiceName: "Puck", SystemInstruction: "be brief"}
	if diff := cmp.Diff(want, hello.LiveConfig()); diff != "" {
		t.Fatalf("LiveConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeClientMessage_Stop(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"stop"}`))
	if err != nil {
		t.Fatalf("DecodeClientMessage() error = %v", err)
	}
	if _, ok := msg.(ClientStop); !ok {
		t.Fatalf("decoded type = %T, want ClientStop", msg)
	}
}

func TestDecodeClientMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
		wantParm string
	}{
		{name: "not json", raw: `nope`, wantCode: "bad_request"},
		{name: "missing type", raw: `{}`, wantCode: "bad_request", wantParm: "type"},
		{name: "unknown type", raw: `{"type":"audio_frame"}`, wantCode: "bad_request", wantParm: "type"},
		{name: "missing version", raw: `{"type":"hello"}`, wantCode: "bad_request", wantParm: "protocol_version"},
		{name: "wrong version", raw: `{"type":"hello","protocol_version":"2"}`, wantCode: "unsupported", wantParm: "protocol_version"},
		{name: "bad mode", raw: `{"type":"hello","protocol_version":"1","mode":"karaoke"}`, wantCode: "unsupported", wantParm: "mode"},
		{name: "bad provider", raw: `{"type":"hello","protocol_version":"1","provider":{"kind":"nope"}}`, wantCode: "bad_request", wantParm: "provider.kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tt.raw))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want *DecodeError", err)
			}
			if de.Code != tt.wantCode || de.Param != tt.wantParm {
				t.Fatalf("got code=%q param=%q, want code=%q param=%q", de.Code, de.Param, tt.wantCode, tt.wantParm)
			}
		})
	}
}

func TestValidateHello_TranscribeMode(t *testing.T) {
	hello := ClientHello{Type: "hello", ProtocolVersion: "1", Mode: " transcribe "}
	if err := ValidateHello(&hello); err != nil {
		t.Fatalf("ValidateHello() error = %v", err)
	}
	if !hello.Transcribe() {
		t.Fatalf("mode = %q, want transcribe", hello.Mode)
	}
}

func TestRedactedForLog_OmitsKey(t *testing.T) {
	hello := ClientHello{
		ProtocolVersion: "1",
		Provider:        &types.ProviderConfig{Kind: types.KindGemini, APIKey: "secret"},
	}
	raw, err := json.Marshal(hello.RedactedForLog())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["has_api_key"] != true {
		t.Fatalf("has_api_key = %v, want true", got["has_api_key"])
	}
	for _, v := range got {
		if s, ok := v.(string); ok && s == "secret" {
			t.Fatalf("redacted log contains the api key: %s", raw)
		}
	}
}

func TestServerStateEncodesName(t *testing.T) {
	raw, err := json.Marshal(ServerState{Type: "state", State: live.StateOpen})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"state","state":"OPEN"}` {
		t.Fatalf("encoded = %s", raw)
	}
}
