// Package auth issues and verifies tokens and runs the session lifecycle
// (register, login, refresh rotation with reuse detection, logout).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/princinho/postboard/apperror"
)

type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

type Claims struct {
	UserID string    `json:"userId"`
	Kind   TokenKind `json:"tokenType"`
	Nonce  string    `json:"nonce"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService is stateless: it only needs the signing key and lifetimes.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing key is empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("auth: token lifetimes must be positive")
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

func (s *TokenService) ttl(kind TokenKind) (time.Duration, error) {
	switch kind {
	case KindAccess:
		return s.cfg.AccessTTL, nil
	case KindRefresh:
		return s.cfg.RefreshTTL, nil
	}
	return 0, fmt.Errorf("auth: unknown token kind %q", kind)
}

// Issue signs a token of the given kind for userID. Each token carries a
// fresh nonce, so two tokens issued in the same second never collide.
func (s *TokenService) Issue(userID string, kind TokenKind) (string, error) {
	ttl, err := s.ttl(kind)
	if err != nil {
		return "", err
	}
	now := s.now()
	nonce := uuid.NewString()
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		Nonce:  nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	access, err := s.Issue(userID, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.Issue(userID, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm and expiry. It does not consult the
// allow-list.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperror.ErrInvalidToken
	}
	return claims, nil
}

// VerifyKind is Verify plus the access/refresh discriminator check.
func (s *TokenService) VerifyKind(tokenStr string, kind TokenKind) (*Claims, error) {
	claims, err := s.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", apperror.ErrInvalidToken, kind, claims.Kind)
	}
	return claims, nil
}
