package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/avstrong/slotbooking/internal/logger"
)

const minPasswordLength = 8

type storage interface {
	SaveUser(ctx context.Context, u *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

type Service struct {
	l       *logger.Logger
	storage storage
	auth    *Authenticator
}

func NewService(l *logger.Logger, storage storage, auth *Authenticator) *Service {
	return &Service{
		l:       l,
		storage: storage,
		auth:    auth,
	}
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("provide username: %w", ErrInvalidInput)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("provide valid email: %w", ErrInvalidInput)
	}

	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must have at least %d characters: %w", minPasswordLength, ErrInvalidInput)
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.storage.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user %s: %w", email, err)
	}

	s.l.LogInfo("User %d registered", u.ID)

	return u, nil
}

// Login checks the credentials and returns a fresh access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.storage.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}

	if err != nil {
		return "", nil, fmt.Errorf("get user by email: %w", err)
	}

	if !s.auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.auth.IssueToken(u)
	if err != nil {
		return "", nil, err
	}

	return token, u, nil
}

// UserFromToken validates the access token and loads the user it names.
// A token for a user that no longer exists is invalid.
func (s *Service) UserFromToken(ctx context.Context, token string) (*User, error) {
	id, err := s.auth.ParseToken(token)
	if err != nil {
		return nil, err
	}

	u, err := s.storage.GetUserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrInvalidToken)
	}

	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return u, nil
}
