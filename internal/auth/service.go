package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/youssefm/groupchat/internal/user"
)

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service issues and verifies access tokens
type Service struct {
	users  *user.Service
	secret []byte
	ttl    time.Duration
}

// NewService creates a new auth service
func NewService(users *user.Service, secret string, ttl time.Duration) *Service {
	return &Service{users: users, secret: []byte(secret), ttl: ttl}
}

// SignIn verifies credentials and returns a signed access token
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			log.Printf("failed sign-in attempt for email %s", email)
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", err
	}

	log.Printf("user %d signed in", u.ID)
	return token, nil
}

// IssueToken signs an HS256 token with the user ID as subject
func (s *Service) IssueToken(u *user.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"exp":   time.Now().Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses a token and returns the embedded user ID
func (s *Service) Verify(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	// MapClaims decodes JSON numbers as float64
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}

	return int64(sub), nil
}
