package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/notekeeper/notekeeper/internal/models"
)

// MinPasswordLength applies to locally registered accounts.
const MinPasswordLength = 8

var ErrInvalidSignup = errors.New("username is required and password must be at least 8 characters")

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

// Option customises a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost for new password hashes.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(r UserRepository, opts ...Option) *Service {
	s := &Service{repo: r, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a local account with a fresh subject id.
func (s *Service) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < MinPasswordLength {
		return nil, ErrInvalidSignup
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Sub:          uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		Name:         username,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks a local username/password pair. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, nil
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}
	return s.repo.UpsertBySub(ctx, &models.User{
		Sub:      sub,
		Username: username,
		Email:    email,
		Name:     name,
	})
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}
