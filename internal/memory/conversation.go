// Package memory implements Conversation Memory (C11): a bounded, ordered
// history of dialog turns scoped to one session, and the process-wide
// session map that owns each Conversation (§4.13). The mutex-guarded
// in-memory map pattern mirrors how the teacher's auth package holds
// short-lived server-side state (internal/auth/auth.go's state store),
// generalized here to per-caller conversation history instead of OAuth
// state tokens.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anhhai680/deepwiki-sub000/pkg/models"
)

// Conversation is an ordered, append-only sequence of Dialog Turns capped
// at MaxTurns; when AutoCleanup is true, appending past the cap drops the
// oldest turns first.
type Conversation struct {
	mu          sync.Mutex
	turns       []models.DialogTurn
	MaxTurns    int
	AutoCleanup bool
}

// NewConversation returns a Conversation bounded at maxTurns. A maxTurns
// of zero or less means unbounded.
func NewConversation(maxTurns int, autoCleanup bool) *Conversation {
	return &Conversation{MaxTurns: maxTurns, AutoCleanup: autoCleanup}
}

// Append adds one Dialog Turn, trimming the oldest turns if AutoCleanup is
// set and the cap is exceeded. Turns are appended in strict call order
// (§5: "appends are strictly ordered by completion, not by request
// arrival").
func (c *Conversation) Append(userText, assistantText string) models.DialogTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := models.DialogTurn{
		TurnID:        uuid.NewString(),
		UserText:      userText,
		AssistantText: assistantText,
		CreatedAt:     time.Now(),
	}
	c.turns = append(c.turns, turn)

	if c.AutoCleanup && c.MaxTurns > 0 && len(c.turns) > c.MaxTurns {
		overflow := len(c.turns) - c.MaxTurns
		c.turns = c.turns[overflow:]
	}
	return turn
}

// Snapshot returns a copy of every turn currently held, oldest first.
func (c *Conversation) Snapshot() []models.DialogTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.DialogTurn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Last returns the most recently appended turn, or false if the
// conversation is empty.
func (c *Conversation) Last() (models.DialogTurn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.turns) == 0 {
		return models.DialogTurn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// Get returns the turn with the given ID, or false if not present.
func (c *Conversation) Get(turnID string) (models.DialogTurn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.turns {
		if t.TurnID == turnID {
			return t, true
		}
	}
	return models.DialogTurn{}, false
}

// Remove deletes the turn with the given ID, reporting whether it existed.
func (c *Conversation) Remove(turnID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.turns {
		if t.TurnID == turnID {
			c.turns = append(c.turns[:i], c.turns[i+1:]...)
			return true
		}
	}
	return false
}

// Clear discards every turn.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// Len reports the current turn count.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Sessions is the process-scoped map of caller identity to Conversation
// that owns conversation lifetime (§4.1 "Ownership": "a process-scoped
// map keyed by caller identity").
type Sessions struct {
	mu           sync.Mutex
	byID         map[string]*Conversation
	defaultMax   int
	defaultClean bool
}

// NewSessions returns an empty session map whose Conversations default to
// defaultMax turns with the given auto-cleanup policy.
func NewSessions(defaultMax int, defaultCleanup bool) *Sessions {
	return &Sessions{
		byID:         map[string]*Conversation{},
		defaultMax:   defaultMax,
		defaultClean: defaultCleanup,
	}
}

// Get returns the Conversation for sessionID, creating one with the
// session map's default policy if none exists yet.
func (s *Sessions) Get(sessionID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[sessionID]
	if !ok {
		c = NewConversation(s.defaultMax, s.defaultClean)
		s.byID[sessionID] = c
	}
	return c
}

// Drop discards a session's conversation entirely, e.g. on explicit
// caller logout.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, sessionID)
}
