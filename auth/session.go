package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/princinho/postboard/apperror"
	"github.com/princinho/postboard/metrics"
	"github.com/princinho/postboard/models"
	"github.com/princinho/postboard/repository"
	"github.com/princinho/postboard/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Hasher is the one-way password hash capability.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

// SessionService keeps no state of its own: a user's session state is the
// content of its refresh-token allow-list.
type SessionService struct {
	users     repository.UserRepository
	tokens    *TokenService
	hasher    Hasher
	log       *zap.Logger
	dummyHash string
}

func NewSessionService(users repository.UserRepository, tokens *TokenService, hasher Hasher, log *zap.Logger) (*SessionService, error) {
	// compared against when the login identifier is unknown, so both failure
	// paths pay for one hash comparison
	dummy, err := hasher.Hash("postboard-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{users: users, tokens: tokens, hasher: hasher, log: log, dummyHash: dummy}, nil
}

func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := utils.NormalizeName(in.Username)
	email := utils.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperror.Validation("All fields are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	// the id is assigned up front so the user and its first refresh token
	// are persisted in a single write
	id := bson.NewObjectID()
	pair, err := s.tokens.IssuePair(id.Hex())
	if err != nil {
		return nil, fmt.Errorf("register: issue tokens: %w", err)
	}

	user := &models.User{
		ID:            id,
		Name:          name,
		Email:         email,
		Password:      hash,
		RefreshTokens: []string{pair.RefreshToken},
	}
	if err := s.users.Create(ctx, user); err != nil {
		metrics.AuthEvent(metrics.EventRegister, metrics.OutcomeFailure)
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.AuthEvent(metrics.EventRegister, metrics.OutcomeSuccess)
	s.log.Info("user registered", zap.String("user_id", id.Hex()))
	return &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, UserID: id.Hex()}, nil
}

// Login accepts exactly one of username or email. Unknown identifiers and
// wrong passwords return the same ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	name := utils.NormalizeName(in.Username)
	email := utils.NormalizeEmail(in.Email)
	if (name == "" && email == "") || in.Password == "" {
		return nil, apperror.Validation("Username or email and password are required")
	}
	if name != "" && email != "" {
		return nil, apperror.Validation("Provide either username or email, not both")
	}

	user, err := s.users.FindByLogin(ctx, name, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("login: %w", err)
		}
		_ = s.hasher.Compare(s.dummyHash, in.Password)
		metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeFailure)
		return nil, apperror.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.Password, in.Password); err != nil {
		metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeFailure)
		return nil, apperror.ErrInvalidCredentials
	}

	userID := user.ID.Hex()
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, fmt.Errorf("login: issue tokens: %w", err)
	}
	if err := s.users.PushRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeSuccess)
	s.log.Info("user logged in", zap.String("user_id", userID))
	return &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, UserID: userID}, nil
}

// Refresh redeems a refresh token exactly once. A verified token that is not
// on its owner's allow-list is treated as replayed: every outstanding refresh
// token of that user is revoked and the call fails.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperror.Validation("Refresh token is required")
	}

	claims, err := s.tokens.VerifyKind(refreshToken, KindRefresh)
	if err != nil {
		metrics.AuthEvent(metrics.EventRefresh, metrics.OutcomeFailure)
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
			metrics.AuthEvent(metrics.EventRefresh, metrics.OutcomeFailure)
			return nil, apperror.ErrInvalidToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	userID := user.ID.Hex()

	if !user.HasRefreshToken(refreshToken) {
		return nil, s.revokeAll(ctx, userID)
	}

	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return nil, fmt.Errorf("refresh: issue tokens: %w", err)
	}

	rotated, err := s.users.RotateRefreshToken(ctx, userID, refreshToken, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.ErrInvalidToken
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !rotated {
		// consumed by a concurrent refresh between the read and the update
		return nil, s.revokeAll(ctx, userID)
	}

	metrics.AuthEvent(metrics.EventRefresh, metrics.OutcomeSuccess)
	return &Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, UserID: userID}, nil
}

func (s *SessionService) revokeAll(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("refresh: revoke sessions: %w", err)
	}
	metrics.AuthEvent(metrics.EventReuseRevoked, metrics.OutcomeSuccess)
	s.log.Warn("refresh token reuse detected, all sessions revoked", zap.String("user_id", userID))
	return apperror.ErrInvalidToken
}

// Logout removes one refresh token from the allow-list. Logging out a token
// that is already gone is not an error.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperror.Validation("Refresh token is required")
	}
	claims, err := s.tokens.VerifyKind(refreshToken, KindRefresh)
	if err != nil {
		return err
	}
	if _, err := s.users.PullRefreshToken(ctx, claims.UserID, refreshToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
			return nil
		}
		return fmt.Errorf("logout: %w", err)
	}
	metrics.AuthEvent(metrics.EventLogout, metrics.OutcomeSuccess)
	return nil
}

// Authenticate resolves an access token to the caller's user id.
func (s *SessionService) Authenticate(accessToken string) (string, error) {
	claims, err := s.tokens.VerifyKind(accessToken, KindAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
