package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrMissingKey   = errors.New("session signing secret is not configured")
)

// SessionService issues and validates anonymous shopper sessions.
type SessionService interface {
	Issue() (token string, claims *SessionClaims, err error)
	Validate(tokenString string) (*SessionClaims, error)
}

// SessionClaims represents the JWT claims of a shopper session
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type sessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionService(secret string, ttl time.Duration) (SessionService, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &sessionService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue starts a new session and returns its signed token
func (s *sessionService) Issue() (string, *SessionClaims, error) {
	now := s.now()
	claims := &SessionClaims{
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, claims, nil
}

// Validate parses tokenString and returns its claims
func (s *sessionService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
