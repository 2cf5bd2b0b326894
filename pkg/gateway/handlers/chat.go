package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
	"github.com/vango-go/vai-studio/pkg/gateway/config"
)

type ChatRequest struct {
	// ConversationID continues an earlier conversation. Empty starts a new one.
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	// System only applies when a conversation is started.
	System string `json:"system,omitempty"`
}

type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          string           `json:"reply"`
	Turns          []types.ChatTurn `json:"turns"`
}

type ConversationResponse struct {
	ConversationID string           `json:"conversation_id"`
	Turns          []types.ChatTurn `json:"turns"`
}

// ChatHandler keeps conversations in memory so the browser only sends the
// newest message. Conversations expire after Config.ConversationTTL without
// use.
type ChatHandler struct {
	Config config.Config
	Router *core.Router
	Logger *slog.Logger
	Store  *ConversationStore
}

// Send serves POST /v1/chat.
func (h ChatHandler) Send() http.Handler {
	ops := Operations{Config: h.Config, Router: h.Router, Logger: h.Logger}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope[ChatRequest]
		if !ops.begin(w, r, &env) {
			return
		}
		req := env.Request
		if err := requirePrompt(req.Message, "message"); err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}

		id, conv, err := h.Store.Open(req.ConversationID, req.System)
		if err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}

		ctx, cancel := ops.timeout(r.Context())
		defer cancel()
		reply, err := conv.Send(ctx, h.Router, ops.provider(env.Provider), req.Message)
		if err != nil {
			writeErr(w, r, h.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ChatResponse{
			ConversationID: id,
			Reply:          reply,
			Turns:          conv.Turns(),
		})
	})
}

// Get serves GET /v1/chat/{id}.
func (h ChatHandler) Get() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		conv, ok := h.Store.Lookup(id)
		if !ok {
			writeErr(w, r, h.Logger, unknownConversation(id))
			return
		}
		writeJSON(w, http.StatusOK, ConversationResponse{ConversationID: id, Turns: conv.Turns()})
	})
}

// Delete serves DELETE /v1/chat/{id}.
func (h ChatHandler) Delete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !h.Store.Delete(id) {
			writeErr(w, r, h.Logger, unknownConversation(id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func unknownConversation(id string) error {
	return &core.Error{
		Type:    core.ErrNotFound,
		Message: "unknown conversation " + id,
		Param:   "conversation_id",
	}
}

// ConversationStore is a bounded in-memory map of conversations. Entries idle
// longer than the TTL are dropped; when full, the least recently used entry
// is evicted.
type ConversationStore struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*storedConversation
}

type storedConversation struct {
	conv     *core.Conversation
	lastUsed time.Time
}

func NewConversationStore(ttl time.Duration, maxEntries int) *ConversationStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ConversationStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[string]*storedConversation),
	}
}

// Open returns the conversation for id, or starts a new one when id is
// empty. An unknown or expired id is a not-found error.
func (s *ConversationStore) Open(id, system string) (string, *core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.gcLocked(now)

	id = strings.TrimSpace(id)
	if id != "" {
		entry, ok := s.entries[id]
		if !ok {
			return "", nil, unknownConversation(id)
		}
		entry.lastUsed = now
		return id, entry.conv, nil
	}

	if len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	id = uuid.NewString()
	conv := core.NewConversation(system)
	s.entries[id] = &storedConversation{conv: conv, lastUsed: now}
	return id, conv, nil
}

func (s *ConversationStore) Lookup(id string) (*core.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gcLocked(s.now())
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.conv, true
}

func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *ConversationStore) gcLocked(now time.Time) {
	for id, entry := range s.entries {
		if now.Sub(entry.lastUsed) > s.ttl {
			delete(s.entries, id)
		}
	}
}

func (s *ConversationStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range s.entries {
		if oldestID == "" || entry.lastUsed.Before(oldest) {
			oldestID, oldest = id, entry.lastUsed
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
