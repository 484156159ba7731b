package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

// Session is the transient per-conversation state: ordered turn history,
// the active handler, detected language and the routing audit trail. It
// lives in the session store for the duration of one call or dialog and is
// never persisted to the relational store.
type Session struct {
	SessionID    string           `json:"session_id"`
	Language     string           `json:"language,omitempty"`
	ActiveIntent contractx.Intent `json:"active_intent,omitempty"`

	Turns   []contractx.Turn  `json:"turns,omitempty"`
	Routing []RoutingDecision `json:"routing,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoutingDecision records one dispatch for evaluation and audit.
type RoutingDecision struct {
	Intent     contractx.Intent `json:"intent"`
	Confidence float64          `json:"confidence"`
	Fallback   bool             `json:"fallback,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	At         time.Time        `json:"at"`
}

func New(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// AppendTurn appends to the transcript in strict invocation order.
func (s *Session) AppendTurn(role contractx.Role, content string, now time.Time) {
	s.Turns = append(s.Turns, contractx.Turn{
		Role:    role,
		Content: content,
		At:      now.UTC(),
	})
	s.Touch(now)
}

// AppendRouting records the dispatch decision and makes its intent the
// active handler for fallback on later ambiguous turns.
func (s *Session) AppendRouting(d RoutingDecision) {
	s.Routing = append(s.Routing, d)
	s.ActiveIntent = d.Intent
	s.Touch(d.At)
}

// Window returns the most recent n turns. The reasoning step sees a
// bounded context, not the unbounded transcript.
func (s *Session) Window(n int) []contractx.Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.ActiveIntent != "" && !contractx.KnownIntent(string(s.ActiveIntent)) {
		return fmt.Errorf("unknown active intent %q", s.ActiveIntent)
	}
	return nil
}
