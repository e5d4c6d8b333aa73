package session

import (
	"context"
	"sync"
	"time"

	"github.com/suseoaa/oaacore/internal/models"
)

// Repository stores login sessions keyed by student id. Load returns
// (nil, nil) when no live session exists, expired sessions count as
// missing.
type Repository interface {
	Save(ctx context.Context, s *models.Session) error
	Load(ctx context.Context, studentID string) (*models.Session, error)
	Delete(ctx context.Context, studentID string) error
	Close() error
}

type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*models.Session)}
}

func (r *MemoryRepository) Save(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sessions[s.StudentID] = &copied
	return nil
}

func (r *MemoryRepository) Load(_ context.Context, studentID string) (*models.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[studentID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.Expired(time.Now()) {
		r.mu.Lock()
		delete(r.sessions, studentID)
		r.mu.Unlock()
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *MemoryRepository) Delete(_ context.Context, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, studentID)
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
