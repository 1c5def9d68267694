package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/notekeeper/notekeeper/internal/models"
)

// Service issues and resolves login sessions.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Create stores a session for actor and returns its id.
func (s *Service) Create(ctx context.Context, actor *models.Actor, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	id := hex.EncodeToString(b)
	now := time.Now().UTC()
	sess := &Session{
		ID:        id,
		Sub:       actor.ID,
		Username:  actor.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return id, nil
}

// Resolve returns the actor behind a live session, or nil.
func (s *Service) Resolve(ctx context.Context, id string) (*models.Actor, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.repo.Delete(ctx, id)
		return nil, nil
	}
	return sess.Actor(), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
