package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Config holds the hashing parameters and signing key shared by every
// component that issues or checks credentials.
type Config struct {
	SigningKey []byte
	TokenTTL   time.Duration
	BcryptCost int
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	conf Config
	now  func() time.Time
}

func NewAuthenticator(conf Config) *Authenticator {
	return &Authenticator{
		conf: conf,
		now:  time.Now,
	}
}

func (a *Authenticator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.conf.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

func (a *Authenticator) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs an HS256 access token whose subject is the user id.
func (a *Authenticator) IssueToken(u *User) (string, error) {
	now := a.now()

	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.conf.TokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.conf.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// ParseToken validates the token and returns the acting user id.
func (a *Authenticator) ParseToken(tokenStr string) (int64, error) {
	t, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(_ *jwt.Token) (interface{}, error) {
			return a.conf.SigningKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q: %w", c.Subject, ErrInvalidToken)
	}

	return id, nil
}
