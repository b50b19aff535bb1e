package session

import (
	"context"
	"errors"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/intent"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// ErrNotFound is returned by Load when the session does not exist or has
// expired.
var ErrNotFound = errors.New("session not found")

// Phase is the coordinator state of a conversation.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCollecting           Phase = "collecting"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
)

// Turn is one user utterance and the reply it produced.
type Turn struct {
	Utterance string         `json:"utterance"`
	Fields    returns.Fields `json:"fields,omitempty"`
	Intent    intent.Intent  `json:"intent"`
	Reply     string         `json:"reply"`
	Outcome   string         `json:"outcome,omitempty"`
	At        time.Time      `json:"at"`
}

// State is everything remembered about one conversation.
type State struct {
	SessionID   string         `json:"session_id"`
	Turns       []Turn         `json:"turns"`
	Fields      returns.Fields `json:"fields"`
	Intent      intent.Intent  `json:"intent"`
	Phase       Phase          `json:"phase"`
	Complete    bool           `json:"complete"`
	LastOutcome string         `json:"last_outcome,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Store persists conversation state. Implementations expire sessions after
// a period of inactivity.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
}

// New returns an idle state for a fresh session.
func New(id string, now time.Time) *State {
	return &State{
		SessionID: id,
		Fields:    make(returns.Fields),
		Intent:    intent.None,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset discards the accumulated fields and returns to idle. Turn history
// is kept.
func (s *State) Reset() {
	s.Fields = make(returns.Fields)
	s.Intent = intent.None
	s.Phase = PhaseIdle
	s.Complete = false
}

// AppendTurn records a turn, keeping at most max turns (0 means unlimited).
func (s *State) AppendTurn(t Turn, max int) {
	s.Turns = append(s.Turns, t)
	if max > 0 && len(s.Turns) > max {
		s.Turns = append([]Turn(nil), s.Turns[len(s.Turns)-max:]...)
	}
	s.UpdatedAt = t.At
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Fields = s.Fields.Clone()
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Fields = t.Fields.Clone()
		c.Turns[i] = t
	}
	return &c
}
