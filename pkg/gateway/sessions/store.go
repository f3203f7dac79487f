// Package sessions holds the in-memory conversation session store.
package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dostvoice/relay/pkg/voice/chat"
)

// Session is one server-held conversational context. Fields are mutated only
// by the owning Store.
type Session struct {
	ID           string
	Conversation chat.Conversation
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
}

// Info is the read-only projection served for diagnostics.
type Info struct {
	SessionID    string    `json:"sessionId"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
}

// ConversationFactory opens a new provider-side conversation for a fresh
// session.
type ConversationFactory func(ctx context.Context) (chat.Conversation, error)

// Store maps session ids to live sessions. All map and session mutation goes
// through the store mutex; sessions are independent, so no cross-session
// coordination exists.
type Store struct {
	timeout         time.Duration
	sweepInterval   time.Duration
	newConversation ConversationFactory
	logger          *slog.Logger

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a session store. timeout bounds idle session lifetime;
// sweepInterval paces the background sweep in Run.
func New(timeout, sweepInterval time.Duration, factory ConversationFactory, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		timeout:         timeout,
		sweepInterval:   sweepInterval,
		newConversation: factory,
		logger:          logger,
		now:             time.Now,
		sessions:        make(map[string]*Session),
	}
}

// Resolve returns the live session for id, refreshing its activity. A
// missing, expired or empty id yields a brand-new session under a fresh
// identifier; the caller learns the id from the returned session. The only
// failure mode is the conversation factory (generation provider not ready).
func (s *Store) Resolve(ctx context.Context, id string) (*Session, error) {
	now := s.now()

	if id != "" {
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok {
			sess.LastActivity = now
			s.mu.Unlock()
			return sess, nil
		}
		s.mu.Unlock()
	}

	if s.newConversation == nil {
		return nil, fmt.Errorf("generation client not initialized")
	}
	conv, err := s.newConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	sess := &Session{
		ID:           uuid.NewString(),
		Conversation: conv,
		CreatedAt:    now,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// Touch refreshes the session's activity timestamp.
func (s *Store) Touch(sess *Session) {
	if sess == nil {
		return
	}
	now := s.now()
	s.mu.Lock()
	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	s.mu.Unlock()
}

// ChargeTurn counts one turn against the session and refreshes activity. The
// count is not rolled back if a later pipeline stage fails.
func (s *Store) ChargeTurn(sess *Session) int {
	if sess == nil {
		return 0
	}
	now := s.now()
	s.mu.Lock()
	sess.MessageCount++
	if now.After(sess.LastActivity) {
		sess.LastActivity = now
	}
	count := sess.MessageCount
	s.mu.Unlock()
	return count
}

// Describe returns the diagnostic projection for id without refreshing
// activity.
func (s *Store) Describe(id string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Info{}, false
	}
	return Info{
		SessionID:    sess.ID,
		CreatedAt:    sess.CreatedAt,
		MessageCount: sess.MessageCount,
		LastActivity: sess.LastActivity,
	}, true
}

// Count reports the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every session idle past the timeout and returns how many
// were removed.
func (s *Store) Sweep(now time.Time) int {
	var removed []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.timeout {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	for _, id := range removed {
		s.logger.Info("session expired", "session_id", id)
	}
	return len(removed)
}

// Run drives periodic sweeping until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}
