package conversation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type session struct {
	mu          sync.Mutex
	id          string
	chatID      string
	createdAt   time.Time
	turns       []Turn
	temperature *float32
}

// Store is the process-wide, in-memory mapping from chat id to session.
// Sessions live until cleared or until the process exits.
type Store struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		logger:   log.With(slog.String("component", "session_store")),
		sessions: make(map[string]*session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lookup(chatID string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	return sess, ok
}

func (s *Store) getOrCreate(chatID string) *session {
	if sess, ok := s.lookup(chatID); ok {
		return sess
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	sess := &session{
		id:        uuid.NewString(),
		chatID:    chatID,
		createdAt: s.now(),
		turns:     make([]Turn, 0, 16),
	}
	s.sessions[chatID] = sess
	if s.logger != nil {
		s.logger.Debug("session created", slog.String("chat_id", chatID), slog.String("session_id", sess.id))
	}
	return sess
}

// GetOrCreate returns the session for chatID, creating an empty one on first access.
func (s *Store) GetOrCreate(chatID string) Snapshot {
	sess := s.getOrCreate(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot()
}

// Append adds turns to the chat's history in order. The turns are assigned
// ids and timestamps when missing.
func (s *Store) Append(chatID string, turns ...Turn) error {
	sess, ok := s.lookup(chatID)
	if !ok {
		return fmt.Errorf("append to chat %s: %w", chatID, ErrUnknownChat)
	}
	for _, turn := range turns {
		if len(turn.Parts) == 0 {
			return fmt.Errorf("append to chat %s: %w", chatID, ErrEmptyTurn)
		}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	for _, turn := range turns {
		turn = turn.clone()
		if turn.ID == "" {
			turn.ID = uuid.NewString()
		}
		if turn.CreatedAt.IsZero() {
			turn.CreatedAt = s.now()
		}
		sess.turns = append(sess.turns, turn)
	}
	return nil
}

// Clear drops the chat's session, including its history and temperature.
// Clearing an unknown chat is a no-op.
func (s *Store) Clear(chatID string) {
	s.mu.Lock()
	_, existed := s.sessions[chatID]
	delete(s.sessions, chatID)
	s.mu.Unlock()
	if existed && s.logger != nil {
		s.logger.Debug("session cleared", slog.String("chat_id", chatID))
	}
}

// Turns returns a copy of the chat's history in insertion order.
func (s *Store) Turns(chatID string) []Turn {
	sess, ok := s.lookup(chatID)
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot().Turns
}

// SetTemperature stores a per-chat sampling temperature, creating the session if needed.
func (s *Store) SetTemperature(chatID string, temperature float32) {
	sess := s.getOrCreate(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	value := temperature
	sess.temperature = &value
}

// Temperature returns the per-chat temperature if one was set.
func (s *Store) Temperature(chatID string) (float32, bool) {
	sess, ok := s.lookup(chatID)
	if !ok {
		return 0, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.temperature == nil {
		return 0, false
	}
	return *sess.temperature, true
}

// Stats reports the number of live sessions and stored turns.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	items := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		items = append(items, sess)
	}
	s.mu.RUnlock()
	stats := Stats{Sessions: len(items)}
	for _, sess := range items {
		sess.mu.Lock()
		stats.Turns += len(sess.turns)
		sess.mu.Unlock()
	}
	return stats
}

// Close drops every session. It is called on shutdown.
func (s *Store) Close() {
	s.mu.Lock()
	n := len(s.sessions)
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("session store closed", slog.Int("sessions", n))
	}
}

func (sess *session) snapshot() Snapshot {
	turns := make([]Turn, len(sess.turns))
	for i, turn := range sess.turns {
		turns[i] = turn.clone()
	}
	snap := Snapshot{
		ID:        sess.id,
		ChatID:    sess.chatID,
		CreatedAt: sess.createdAt,
		Turns:     turns,
	}
	if sess.temperature != nil {
		value := *sess.temperature
		snap.Temperature = &value
	}
	return snap
}
