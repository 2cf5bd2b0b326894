package live

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

func TestTranscript_SealsOnTurnComplete(t *testing.T) {
	var tr Transcript
	tr.Add(types.RoleUser, "a", false)
	tr.Add(types.RoleUser, "bc", true)
	tr.Add(types.RoleAssistant, "x", false)

	want := []TranscriptEntry{
		{ID: 0, Speaker: types.RoleUser, Text: "abc", Final: true},
		{ID: 1, Speaker: types.RoleAssistant, Text: "x", Final: false},
	}
	if diff := cmp.Diff(want, tr.Entries()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscript_AssistantSealsOpenUserEntry(t *testing.T) {
	var tr Transcript
	tr.Add(types.RoleUser, "what time", false)
	changed := tr.Add(types.RoleAssistant, "It is", false)

	want := []TranscriptEntry{
		{ID: 0, Speaker: types.RoleUser, Text: "what time", Final: true},
		{ID: 1, Speaker: types.RoleAssistant, Text: "It is", Final: false},
	}
	if diff := cmp.Diff(want, changed); diff != "" {
		t.Fatalf("changed mismatch (-want +got):\n%s", diff)
	}

	tr.Add(types.RoleAssistant, " noon.", true)
	tr.Add(types.RoleUser, "thanks", false)
	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[1].Text != "It is noon." || !entries[1].Final {
		t.Fatalf("assistant entry = %#v", entries[1])
	}
	if entries[2].Speaker != types.RoleUser || entries[2].Final {
		t.Fatalf("new user entry = %#v", entries[2])
	}
}

func TestTranscript_InterleavedSpeakersExtendTheirOwnEntry(t *testing.T) {
	var tr Transcript
	tr.Add(types.RoleAssistant, "Sure, ", false)
	tr.Add(types.RoleUser, "wait", false)
	tr.Add(types.RoleUser, " no", false)

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[1].Text != "wait no" {
		t.Fatalf("user text = %q", entries[1].Text)
	}

	// The assistant resumes: the open user entry is sealed and the open
	// assistant entry is extended rather than a new one started.
	tr.Add(types.RoleAssistant, "okay", false)
	entries = tr.Entries()
	if len(entries) != 2 || entries[0].Text != "Sure, okay" || !entries[1].Final {
		t.Fatalf("entries = %#v", entries)
	}
}

func TestTranscript_SealLatestAndSealAll(t *testing.T) {
	var tr Transcript
	if _, changed := tr.SealLatest(); changed {
		t.Fatalf("SealLatest on empty transcript reported a change")
	}

	tr.Add(types.RoleAssistant, "one", false)
	entry, changed := tr.SealLatest()
	if !changed || !entry.Final {
		t.Fatalf("SealLatest = %#v, %v", entry, changed)
	}
	if _, changed := tr.SealLatest(); changed {
		t.Fatalf("sealing twice reported a change")
	}

	tr.Add(types.RoleUser, "two", false)
	sealed := tr.SealAll()
	if len(sealed) != 1 || sealed[0].Text != "two" {
		t.Fatalf("SealAll = %#v", sealed)
	}
	for _, e := range tr.Entries() {
		if !e.Final {
			t.Fatalf("entry %d still open", e.ID)
		}
	}

	if got := tr.Text(); got != "assistant: one\nuser: two\n" {
		t.Fatalf("Text() = %q", got)
	}
	tr.Reset()
	if len(tr.Entries()) != 0 {
		t.Fatalf("Reset left entries")
	}
}
