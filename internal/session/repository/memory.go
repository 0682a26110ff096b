package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"sessionkeeper/backend/internal/session/domain"
)

// ErrDuplicateSession is returned by MemoryRepository.Create for a reused session id.
var ErrDuplicateSession = errors.New("session id already exists")

// MemoryRepository is an in-process Repository with the same update semantics as SQLRepository.
// Used by service tests.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	// Err, when set, is returned by every call.
	Err error
	// Now stamps updated_at; defaults to 0.
	Now func() int64
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) stamp() int64 {
	if r.Now == nil {
		return 0
	}
	return r.Now()
}

// Create stores a copy of s with version 1 and not revoked.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.sessions[s.ID]; ok {
		return ErrDuplicateSession
	}
	cp := *s
	cp.Version = 1
	cp.Revoked = false
	cp.Reason = ""
	cp.UpdatedAt = r.stamp()
	r.sessions[s.ID] = &cp
	return nil
}

// FindOne returns a copy of the session, or nil.
func (r *MemoryRepository) FindOne(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	s, ok := r.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// Update applies p to one session.
func (r *MemoryRepository) Update(ctx context.Context, sessionID, userID string, p domain.Patch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	s, ok := r.sessions[sessionID]
	if !ok || s.UserID != userID {
		return false, nil
	}
	return r.apply(s, p), nil
}

// UpdateAll applies p to every session of userID.
func (r *MemoryRepository) UpdateAll(ctx context.Context, userID string, p domain.Patch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && r.apply(s, p) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) apply(s *domain.Session, p domain.Patch) bool {
	if p.Empty() {
		return false
	}
	if p.IfVersion > 0 && s.Version != p.IfVersion {
		return false
	}
	if p.Revoke && s.Revoked {
		return false
	}
	if p.IfActiveAt > 0 && (s.Revoked || s.ExpiresAt < p.IfActiveAt) {
		return false
	}
	if p.Version != nil {
		s.Version = *p.Version
	}
	if p.Revoke {
		s.Revoked = true
	}
	if p.Reason != nil {
		s.Reason = *p.Reason
	}
	if p.DeviceName != nil {
		s.DeviceName = *p.DeviceName
	}
	if p.BrowserVersion != nil {
		s.BrowserVersion = *p.BrowserVersion
	}
	if p.IPAddress != nil {
		s.IPAddress = *p.IPAddress
	}
	s.UpdatedAt = r.stamp()
	return true
}

// ListActive returns non-revoked sessions whose ceiling is at or after now, newest first.
func (r *MemoryRepository) ListActive(ctx context.Context, userID string, now int64) ([]*domain.Session, error) {
	return r.list(func(s *domain.Session) bool {
		return s.UserID == userID && !s.Revoked && s.ExpiresAt >= now
	})
}

// ListRevoked returns revoked sessions, newest first.
func (r *MemoryRepository) ListRevoked(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.list(func(s *domain.Session) bool { return s.UserID == userID && s.Revoked })
}

// PurgeExpired deletes sessions whose ceiling is before the given epoch second.
func (r *MemoryRepository) PurgeExpired(ctx context.Context, before int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt < before {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Put stores s verbatim, bypassing Create's defaults.
func (r *MemoryRepository) Put(s *domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
}

func (r *MemoryRepository) list(keep func(*domain.Session) bool) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*domain.Session
	for _, s := range r.sessions {
		if keep(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*SQLRepository)(nil)
)
