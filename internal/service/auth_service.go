package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const bcryptCost = 10

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
}

// NewAuthService creates the sign-in and session service
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, logger *zap.Logger) *authService {
	return &authService{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a shopper account
func (s *authService) Register(ctx context.Context, name, email, password string) (*domain.Identity, error) {
	user, err := s.createUser(ctx, name, email, password, false)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

// CreateAdmin creates an admin account, or promotes the existing account
// with that email
func (s *authService) CreateAdmin(ctx context.Context, name, email, password string) (*domain.Identity, error) {
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		if !existing.IsAdmin {
			existing.IsAdmin = true
			if err := s.users.Update(ctx, existing); err != nil {
				return nil, err
			}
			s.logger.Info("Promoted user to admin", zap.String("user_id", existing.ID))
		}
		return existing.Identity(), nil
	}
	var notFound *errors.ErrNotFound
	if !stderrors.As(err, &notFound) {
		return nil, err
	}

	user, err := s.createUser(ctx, name, email, password, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Admin created", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return user.Identity(), nil
}

func (s *authService) createUser(ctx context.Context, name, email, password string, admin bool) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, &errors.ErrValidation{Field: "name", Message: "name is required"}
	}
	if !strings.Contains(email, "@") {
		return nil, &errors.ErrValidation{Field: "email", Message: "invalid email address"}
	}
	if len(password) < 6 {
		return nil, &errors.ErrValidation{Field: "password", Message: "must be at least 6 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      admin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and opens a session. Unknown emails and wrong
// passwords fail the same way.
func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	invalid := &errors.ErrUnauthorized{Message: "invalid email or password"}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		var notFound *errors.ErrNotFound
		if stderrors.As(err, &notFound) {
			return "", nil, invalid
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, invalid
	}

	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, err
	}
	return session.Token, user.Identity(), nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *authService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Identify resolves a bearer token to the signed-in user
func (s *authService) Identify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, &errors.ErrUnauthorized{Message: "missing token"}
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		var notFound *errors.ErrNotFound
		if stderrors.As(err, &notFound) {
			return nil, &errors.ErrUnauthorized{Message: "invalid or expired token"}
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		var notFound *errors.ErrNotFound
		if stderrors.As(err, &notFound) {
			return nil, &errors.ErrUnauthorized{Message: "invalid or expired token"}
		}
		return nil, err
	}
	return user.Identity(), nil
}

func (s *authService) ListUsers(ctx context.Context, adminsOnly bool) ([]*domain.Identity, error) {
	users, err := s.users.List(ctx, adminsOnly)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return out, nil
}

// SetAdmin grants or revokes the admin role. Admins cannot revoke their own role.
func (s *authService) SetAdmin(ctx context.Context, actor *domain.Identity, userID string, isAdmin bool) (*domain.Identity, error) {
	if actor != nil && actor.ID == userID && !isAdmin {
		return nil, &errors.ErrValidation{Field: "is_admin", Message: "cannot remove your own admin role"}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.Identity(), nil
}
