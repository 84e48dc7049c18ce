package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"tour-guide-agent/internal/domain"
)

const defaultSessionTTL = 2 * time.Hour

// ReadWriter defines the session state operations consumed by the tour service.
type ReadWriter interface {
	Lock(sessionID string) (unlock func())
	Load(ctx context.Context, sessionID string) (domain.Session, error)
	Reset(ctx context.Context, sessionID string) error
	SaveCompletedTurn(ctx context.Context, sessionID, language string, user, assistant domain.ChatMessage) error
	SavePreferences(ctx context.Context, sessionID string, profile domain.PreferenceProfile) error
}

// sessionEntry pairs a session with the lock that serialises its turns.
type sessionEntry struct {
	turnMu sync.Mutex

	mu      sync.Mutex
	session domain.Session
}

// MemoryStore keeps sessions in process memory. Idle sessions expire after the
// configured TTL; every write refreshes it.
type MemoryStore struct {
	mu    sync.Mutex
	items *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates a store whose sessions expire after ttl of inactivity.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryStore{
		items: cache.New(ttl, ttl/2),
		ttl:   ttl,
		now:   time.Now,
	}
}

var errEmptySessionID = errors.New("repository: session id must not be empty")

func (s *MemoryStore) entry(sessionID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items.Get(sessionID); ok {
		return v.(*sessionEntry)
	}
	e := &sessionEntry{session: domain.Session{ID: sessionID}}
	s.items.Set(sessionID, e, s.ttl)
	return e
}

// peek finds a live entry without creating one.
func (s *MemoryStore) peek(sessionID string) (*sessionEntry, bool) {
	v, ok := s.items.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*sessionEntry), true
}

func (s *MemoryStore) touch(sessionID string, e *sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Set(sessionID, e, s.ttl)
}

// Lock serialises turns on one session. The returned func releases it.
func (s *MemoryStore) Lock(sessionID string) func() {
	e := s.entry(strings.TrimSpace(sessionID))
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Load returns a copy of the session. Unknown ids yield a fresh, empty session
// that is not stored.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, errEmptySessionID
	}
	e, ok := s.peek(sessionID)
	if !ok {
		return domain.Session{ID: sessionID}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return copySession(e.session), nil
}

// Reset drops history, pinned language and preferences for the session. An
// unknown id is already empty and is left absent.
func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errEmptySessionID
	}
	e, ok := s.peek(sessionID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.session = domain.Session{ID: sessionID, UpdatedAt: s.now().UTC()}
	e.mu.Unlock()
	s.touch(sessionID, e)
	return nil
}

// SaveCompletedTurn appends the user block and assistant reply as one unit and
// pins the session language.
func (s *MemoryStore) SaveCompletedTurn(_ context.Context, sessionID, language string, user, assistant domain.ChatMessage) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errEmptySessionID
	}
	if user.Role != domain.RoleUser || assistant.Role != domain.RoleAssistant {
		return errors.New("repository: SaveCompletedTurn: expected user then assistant message")
	}
	e := s.entry(sessionID)
	e.mu.Lock()
	e.session.History = append(e.session.History, user, assistant)
	if language != "" {
		e.session.Language = language
	}
	e.session.UpdatedAt = s.now().UTC()
	e.mu.Unlock()
	s.touch(sessionID, e)
	return nil
}

// SavePreferences replaces the session's preference profile wholesale.
func (s *MemoryStore) SavePreferences(_ context.Context, sessionID string, profile domain.PreferenceProfile) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errEmptySessionID
	}
	e := s.entry(sessionID)
	e.mu.Lock()
	p := copyProfile(profile)
	e.session.Preferences = &p
	e.mu.Unlock()
	s.touch(sessionID, e)
	return nil
}

func copySession(in domain.Session) domain.Session {
	out := in
	out.History = append([]domain.ChatMessage(nil), in.History...)
	if in.Preferences != nil {
		p := copyProfile(*in.Preferences)
		out.Preferences = &p
	}
	return out
}

func copyProfile(in domain.PreferenceProfile) domain.PreferenceProfile {
	out := in
	out.Likes = cloneStrings(in.Likes)
	out.Dislikes = cloneStrings(in.Dislikes)
	out.VisitedPlaces = cloneStrings(in.VisitedPlaces)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
