package live

import (
	"strings"
	"sync"

	"github.com/vango-go/vai-studio/pkg/core/types"
)

// TranscriptEntry is one utterance. A Final entry is sealed and no longer
// extended.
type TranscriptEntry struct {
	ID      int        `json:"id"`
	Speaker types.Role `json:"speaker"`
	Text    string     `json:"text"`
	Final   bool       `json:"final"`
}

// Transcript accumulates streamed transcription fragments into entries.
// It is safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	entries []TranscriptEntry
}

// Add appends text to the most recent unsealed entry of speaker, or starts a
// new entry when there is none. final seals the entry afterwards.
//
// An assistant fragment first seals any open user entry: the user's turn is
// taken to be over once the assistant answers. This is best-effort; real
// overlapping speech can break it.
//
// Add returns every entry it changed, in order.
func (t *Transcript) Add(speaker types.Role, text string, final bool) []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changed []TranscriptEntry
	if speaker == types.RoleAssistant {
		if i := t.openLocked(types.RoleUser); i >= 0 {
			t.entries[i].Final = true
			changed = append(changed, t.entries[i])
		}
	}

	i := t.openLocked(speaker)
	if i < 0 {
		t.entries = append(t.entries, TranscriptEntry{ID: len(t.entries), Speaker: speaker})
		i = len(t.entries) - 1
	}
	t.entries[i].Text += text
	t.entries[i].Final = final
	return append(changed, t.entries[i])
}

// SealLatest seals the most recent entry. It reports the entry and whether
// it changed.
func (t *Transcript) SealLatest() (TranscriptEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return TranscriptEntry{}, false
	}
	last := &t.entries[len(t.entries)-1]
	if last.Final {
		return *last, false
	}
	last.Final = true
	return *last, true
}

// SealAll seals every open entry and returns the ones it sealed.
func (t *Transcript) SealAll() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sealed []TranscriptEntry
	for i := range t.entries {
		if !t.entries[i].Final {
			t.entries[i].Final = true
			sealed = append(sealed, t.entries[i])
		}
	}
	return sealed
}

// Entries returns a copy of all entries in order.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TranscriptEntry(nil), t.entries...)
}

// Text renders the transcript as "speaker: text" lines.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	for _, e := range t.entries {
		b.WriteString(string(e.Speaker))
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Reset drops every entry.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

func (t *Transcript) openLocked(speaker types.Role) int {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Speaker == speaker && !t.entries[i].Final {
			return i
		}
	}
	return -1
}
