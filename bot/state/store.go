package state

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidUser     = errors.New("user id is empty")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrNilContext      = errors.New("context is nil")
)

// Store holds per-conversation state keyed by session id, with reverse lookup
// by user id. Put replaces the session's context wholesale.
type Store interface {
	FindOrCreate(ctx context.Context, userID string) (string, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Put(ctx context.Context, sessionID string, sc *Context) error
}

// MemoryStore is the process-lifetime Store. Sessions are never destroyed.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]string

	newID func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		newID:    uuid.NewString,
	}
}

// FindOrCreate returns the session id already bound to userID, or allocates a
// fresh session with an empty context. Session identity is a pure function of
// first-seen user id.
func (s *MemoryStore) FindOrCreate(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byUser[userID]; ok {
		return id, nil
	}

	id := s.newID()
	s.sessions[id] = &Session{ID: id, UserID: userID, Context: NewContext()}
	s.byUser[userID] = id
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	// Callers get an isolated copy; the stored context only changes via Put.
	cloned, err := sess.Context.Clone()
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, UserID: sess.UserID, Context: cloned}, nil
}

func (s *MemoryStore) Put(ctx context.Context, sessionID string, sc *Context) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if sc == nil {
		return ErrNilContext
	}

	cloned, err := sc.Clone()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Context = cloned
	return nil
}

// Locks serializes turns per session id. Turns for distinct sessions do not
// block each other.
type Locks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{held: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the session lock is held and returns its release func.
func (l *Locks) Acquire(sessionID string) func() {
	l.mu.Lock()
	m, ok := l.held[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.held[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
