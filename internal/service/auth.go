package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/config"
	"github.com/Skotchmaster/product_api/internal/events"
	"github.com/Skotchmaster/product_api/internal/hash"
	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/models"
	"github.com/Skotchmaster/product_api/internal/repo"
	"github.com/Skotchmaster/product_api/internal/tokens"
	"github.com/Skotchmaster/product_api/internal/transport"
)

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Service
	Events events.Publisher
}

func NewAuthService(r *repo.GormRepo, ts *tokens.Service) *AuthService {
	return &AuthService{Repo: r, Tokens: ts, Events: events.Nop{}}
}

func (s *AuthService) Signup(ctx context.Context, req transport.SignupRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("signup_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: pwHash,
		Role:           models.RoleUser,
	}

	err = s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		exists, err := rs.UserExists(user.Username, user.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}
		return rs.CreateUser(&user)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = ErrAlreadyRegistered
	}
	if err != nil {
		return nil, err
	}

	if err := s.Events.Publish(ctx, events.Event{
		Type:    events.UserRegistered,
		ID:      user.ID,
		Payload: map[string]string{"username": user.Username},
	}); err != nil {
		l.Warn("event_publish_error", "event", events.UserRegistered, "error", err)
	}
	return &user, nil
}

// Login accepts a username or an email. On success with a legacy or
// outdated hash the stored hash is upgraded.
func (s *AuthService) Login(ctx context.Context, login, password string) (*transport.TokenResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	var user *models.User
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		user, err = rs.UserByLogin(login)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			hash.Burn(password)
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}

		ok, rehash, err := hash.CheckPassword(user.HashedPassword, password)
		if err != nil {
			l.Warn("login_failed", "reason", "unreadable password hash", "user_id", user.ID, "error", err)
			return ErrInvalidCredentials
		}
		if !ok {
			return ErrInvalidCredentials
		}

		if rehash {
			if h, err := hash.HashPassword(password); err == nil {
				if err := rs.UpdatePasswordHash(user.ID, h); err != nil {
					l.Warn("password_rehash_error", "user_id", user.ID, "error", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, _, err := s.Tokens.Issue(user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &transport.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func (s *AuthService) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		var err error
		user, err = rs.UserByEmail(email)
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// EnsureAdmin creates the configured admin account unless a user with the
// same username or email already exists. It reports whether a user was
// created.
func (s *AuthService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) (bool, error) {
	if !admin.Enabled() {
		return false, nil
	}

	pwHash, err := hash.HashPassword(admin.Password)
	if err != nil {
		return false, err
	}

	created := false
	err = s.Repo.WithSession(ctx, func(rs *repo.Session) error {
		exists, err := rs.UserExists(admin.Username, admin.Email)
		if err != nil || exists {
			return err
		}
		created = true
		return rs.CreateUser(&models.User{
			Username:       admin.Username,
			Email:          admin.Email,
			HashedPassword: pwHash,
			Role:           models.RoleAdmin,
		})
	})
	if err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}
	return created, nil
}
