// Package account logs users in against the backend and keeps their
// sessions.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/busgo/internal/domain"
	"github.com/kirinyoku/busgo/internal/gateway"
	"github.com/kirinyoku/busgo/internal/repository"
)

type Gateway interface {
	Login(ctx context.Context, creds gateway.Credentials) (*domain.User, error)
}

type Store interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, id string, s Session) error
	Delete(ctx context.Context, id string) error
}

type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, time.Duration, error)
}

type Session struct {
	ID        string      `json:"id"`
	User      domain.User `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Service struct {
	gw      Gateway
	store   Store
	limiter Limiter
	logger  *slog.Logger
	now     func() time.Time
}

func New(gw Gateway, store Store, limiter Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		gw:      gw,
		store:   store,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "account")),
		now:     time.Now,
	}
}

// Login checks the credentials with the backend and opens a session.
//
// Parameters:
//   - ctx: request-scoped context.
//   - email, password: the login form.
//   - clientKey: rate limit bucket, usually the client IP.
//
// Returns:
//   - Session: the new session.
//   - error: *RateLimitedError when the client made too many attempts.
//   - error: account.ErrInvalidCredentials if the backend rejected the login.
func (s *Service) Login(ctx context.Context, email, password, clientKey string) (Session, error) {
	const op = "service.account.Login"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%s: %w", op,
			domain.NewValidationError("", "Please enter email and password"))
	}

	if s.limiter != nil && clientKey != "" {
		ok, retry, err := s.limiter.Allow(ctx, clientKey)
		if err != nil {
			return Session{}, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			s.logger.Warn("login rate limited", slog.String("client", clientKey))
			return Session{}, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retry})
		}
	}

	user, err := s.gw.Login(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		switch gateway.StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
			return Session{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	sess := Session{
		ID:        uuid.NewString(),
		User:      *user,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, sess.ID, sess); err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))

	return sess, nil
}

func (s *Service) Current(ctx context.Context, sessionID string) (Session, error) {
	const op = "service.account.Current"

	if sessionID == "" {
		return Session{}, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	const op = "service.account.Logout"

	if sessionID == "" {
		return nil
	}

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
