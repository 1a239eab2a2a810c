// ABOUTME: Durable per-session conversation record with load-or-create semantics
// ABOUTME: Chat history is append-only; persistence is whole-record overwrite (last-writer-wins)

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/captivate-ai/captivate-go/memstore"
)

// DefaultTitle is assigned to freshly created sessions.
const DefaultTitle = "Untitled"

const keyPrefix = "session:"

// Turn roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// ErrCorruptRecord is returned when a stored session record cannot be
// decoded. Load never falls back to a fresh session in that case, since
// that would silently drop history.
var ErrCorruptRecord = errors.New("corrupt session record")

// Turn is one chat-history entry. Content is a string for user turns and
// the full outgoing message sequence for bot turns.
type Turn struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   any    `json:"content"`
	Timestamp string `json:"timestamp"` // UTC, ISO-8601
}

// Session is the per-session conversation record stored under
// "session:<sessionID>".
type Session struct {
	SessionID         string         `json:"session_id"`
	ChatHistory       []Turn         `json:"chat_history"`
	ExtractedContext  map[string]any `json:"extracted_context"`
	ConversationTitle string         `json:"conversation_title"`
}

// Key returns the store key for a session ID.
func Key(sessionID string) string {
	return keyPrefix + sessionID
}

// New creates a fresh session with empty history.
func New(sessionID, title string) *Session {
	if title == "" {
		title = DefaultTitle
	}
	return &Session{
		SessionID:         sessionID,
		ChatHistory:       []Turn{},
		ExtractedContext:  map[string]any{},
		ConversationTitle: title,
	}
}

// Load reads and decodes the stored record for sessionID. Absence is
// reported as memstore.ErrNotFound; an undecodable record is reported as
// ErrCorruptRecord.
func Load(ctx context.Context, store memstore.Store, sessionID string) (*Session, error) {
	raw, err := store.Get(ctx, Key(sessionID))
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, sessionID, err)
	}
	if s.ExtractedContext == nil {
		s.ExtractedContext = map[string]any{}
	}
	if s.ChatHistory == nil {
		s.ChatHistory = []Turn{}
	}
	s.SessionID = sessionID
	return &s, nil
}

// LoadOrCreate reads the stored record for sessionID, creating a fresh
// session with the given default title on a miss. Decode failure is fatal.
func LoadOrCreate(ctx context.Context, store memstore.Store, sessionID, defaultTitle string) (*Session, error) {
	s, err := Load(ctx, store, sessionID)
	if errors.Is(err, memstore.ErrNotFound) {
		return New(sessionID, defaultTitle), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// AppendTurn appends a timestamped history entry. In-memory only; the
// caller persists separately.
func (s *Session) AppendTurn(role string, content any) {
	s.ChatHistory = append(s.ChatHistory, Turn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// LastBotTurn returns the most recent bot turn, if any.
func (s *Session) LastBotTurn() (Turn, bool) {
	for i := len(s.ChatHistory) - 1; i >= 0; i-- {
		if s.ChatHistory[i].Role == RoleBot {
			return s.ChatHistory[i], true
		}
	}
	return Turn{}, false
}

// MergeContext merges extracted facts into the session context,
// overwriting on key collision. Keys are lower-cased.
func (s *Session) MergeContext(extracted map[string]any) {
	if s.ExtractedContext == nil {
		s.ExtractedContext = map[string]any{}
	}
	for k, v := range extracted {
		s.ExtractedContext[strings.ToLower(k)] = v
	}
}

// Persist overwrites the whole stored record with the current in-memory
// snapshot. Last-writer-wins: concurrent requests for the same session ID
// overwrite each other, which is an accepted limitation of this record.
func (s *Session) Persist(ctx context.Context, store memstore.Store) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", s.SessionID, err)
	}
	if err := store.Set(ctx, Key(s.SessionID), string(raw)); err != nil {
		return fmt.Errorf("persisting session %s: %w", s.SessionID, err)
	}
	return nil
}
