// Package store holds the client-side conversation state: every conversation
// the user has, its display log, and the flattened history replayed to the
// model. The whole collection persists as a single JSON file rewritten on
// every mutation.
package store

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gemchat/internal/models"
)

// DefaultTitle is the placeholder until the first user message names a
// conversation.
const DefaultTitle = "New Chat"

// titleRunes bounds a derived conversation title.
const titleRunes = 40

// ErrNotFound reports an unknown conversation id.
var ErrNotFound = errors.New("conversation not found")

// AttachmentRef is display metadata for a sent attachment. The bytes are not
// kept past the request that used them.
type AttachmentRef struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MediaType string `json:"media_type"`
}

// Message is one turn in a conversation's display log. Local messages (such as
// failure notices rendered in the model's voice) never enter the API history.
type Message struct {
	Role        string          `json:"role"`
	Text        string          `json:"text"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	SentAt      time.Time       `json:"sent_at"`
	Local       bool            `json:"local,omitempty"`
}

type Conversation struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Messages   []Message         `json:"messages"`
	APIHistory []models.ChatTurn `json:"api_history"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// state is the single persisted record.
type state struct {
	Version       int             `json:"version"`
	CurrentID     string          `json:"current_id"`
	Conversations []*Conversation `json:"conversations"`
}

type Store struct {
	mu            sync.Mutex
	path          string
	conversations []*Conversation
	currentID     string
}

// Open loads the state file at path. A missing, unreadable, or corrupt file
// degrades to an empty store rather than failing; the store always ends up
// with at least one conversation, selected as current.
func Open(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var st state
		if uerr := json.Unmarshal(data, &st); uerr != nil {
			log.Printf("WARNING: conversation state at %s is unreadable, starting empty: %v", path, uerr)
		} else {
			s.conversations = st.Conversations
			s.currentID = st.CurrentID
		}
	case os.IsNotExist(err):
		// First run
	default:
		log.Printf("WARNING: failed to read conversation state at %s, starting empty: %v", path, err)
	}

	changed := false
	if s.find(s.currentID) == nil && s.currentID != "" {
		s.currentID = ""
		changed = true
	}
	if len(s.conversations) == 0 {
		s.createLocked()
		changed = true
	}
	if s.currentID == "" {
		s.currentID = s.mostRecentLocked().ID
		changed = true
	}
	if changed {
		s.persistLocked()
	}

	return s
}

// Create inserts an empty conversation at the front of the ordering and makes
// it current.
func (s *Store) Create() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.createLocked()
	s.persistLocked()
	return snapshot(c)
}

func (s *Store) createLocked() *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations = append([]*Conversation{c}, s.conversations...)
	s.currentID = c.ID
	return c
}

// Select makes the conversation current and returns its message log.
func (s *Store) Select(id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(id)
	if c == nil {
		return nil, ErrNotFound
	}
	if s.currentID != id {
		s.currentID = id
		s.persistLocked()
	}

	msgs := make([]Message, len(c.Messages))
	copy(msgs, c.Messages)
	return msgs, nil
}

// Append adds a message to the conversation log. Non-local user/model messages
// with text also extend the API history. The first user message sets the title
// while it is still the default.
func (s *Store) Append(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(id)
	if c == nil {
		return ErrNotFound
	}

	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	c.Messages = append(c.Messages, msg)

	if !msg.Local && msg.Text != "" && (msg.Role == models.RoleUser || msg.Role == models.RoleModel) {
		c.APIHistory = append(c.APIHistory, models.ChatTurn{Role: msg.Role, Text: msg.Text})
	}

	if msg.Role == models.RoleUser && c.Title == DefaultTitle && strings.TrimSpace(msg.Text) != "" {
		c.Title = deriveTitle(msg.Text)
	}

	c.UpdatedAt = time.Now()
	s.persistLocked()
	return nil
}

// Clear empties a conversation's log and history and resets its title, keeping
// the id.
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(id)
	if c == nil {
		return ErrNotFound
	}

	c.Messages = nil
	c.APIHistory = nil
	c.Title = DefaultTitle
	c.UpdatedAt = time.Now()
	s.persistLocked()
	return nil
}

// Delete removes a conversation. When the current one goes, the most recently
// updated survivor takes over, or a fresh conversation if none remain.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.currentID == id {
		if len(s.conversations) == 0 {
			s.createLocked()
		} else {
			s.currentID = s.mostRecentLocked().ID
		}
	}

	s.persistLocked()
	return nil
}

// Current returns a copy of the current conversation.
func (s *Store) Current() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.find(s.currentID))
}

// List returns copies of all conversations, most recently updated first. The
// ordering is recomputed on every call.
func (s *Store) List() []*Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, snapshot(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func (s *Store) find(id string) *Conversation {
	if id == "" {
		return nil
	}
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Store) mostRecentLocked() *Conversation {
	best := s.conversations[0]
	for _, c := range s.conversations[1:] {
		if c.UpdatedAt.After(best.UpdatedAt) {
			best = c
		}
	}
	return best
}

// persistLocked rewrites the full state file. Write failures are logged, not
// propagated: losing durability degrades the session, it must not break it.
func (s *Store) persistLocked() {
	st := state{
		Version:       1,
		CurrentID:     s.currentID,
		Conversations: s.conversations,
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		log.Printf("WARNING: failed to encode conversation state: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("WARNING: failed to create state dir: %v", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		log.Printf("WARNING: failed to write conversation state: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("WARNING: failed to replace conversation state: %v", err)
	}
}

func snapshot(c *Conversation) *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	cp.APIHistory = make([]models.ChatTurn, len(c.APIHistory))
	copy(cp.APIHistory, c.APIHistory)
	return &cp
}

func deriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	runes := []rune(title)
	if len(runes) > titleRunes {
		title = string(runes[:titleRunes]) + "…"
	}
	return title
}
