package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/suma/internal/model"
	appErr "github.com/xxxsen/suma/internal/pkg/errors"
	"github.com/xxxsen/suma/internal/pkg/jwt"
	"github.com/xxxsen/suma/internal/pkg/password"
	"github.com/xxxsen/suma/internal/pkg/timeutil"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
}

// TokenPair is issued on register, login and refresh. The refresh token travels
// in an HTTP-only cookie and never in the response body.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"-"`
}

type AuthService struct {
	users      UserStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(users UserStore, secret []byte, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{users: users, jwtSecret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *AuthService) Register(ctx context.Context, email, plainPassword string) (*model.User, *TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if plainPassword == "" {
		return nil, nil, fmt.Errorf("password is required: %w", appErr.ErrInvalid)
	}
	hash, err := password.Hash(plainPassword)
	if err != nil {
		return nil, nil, err
	}
	now := timeutil.NowUnix()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		PasswordHash: hash,
		Ctime:        now,
		Mtime:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if appErr.IsConflict(err) {
			return nil, nil, fmt.Errorf("email already registered: %w", appErr.ErrConflict)
		}
		return nil, nil, err
	}
	logutil.GetLogger(ctx).Info("user registered", zap.String("user_id", user.ID))
	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) Login(ctx context.Context, email, plainPassword string) (*model.User, *TokenPair, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, appErr.ErrUnauthorized
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, nil, appErr.ErrUnauthorized
		}
		return nil, nil, err
	}
	if err := password.Compare(user.PasswordHash, plainPassword); err != nil {
		return nil, nil, appErr.ErrUnauthorized
	}
	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new pair. Access tokens are rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token: %w", appErr.ErrUnauthorized)
	}
	claims, err := jwt.ParseRefreshToken(refreshToken, s.jwtSecret)
	if err != nil {
		logutil.GetLogger(ctx).Debug("refresh token rejected", zap.Error(err))
		return nil, fmt.Errorf("invalid refresh token: %w", appErr.ErrUnauthorized)
	}
	return s.issue(claims.UserID())
}

func (s *AuthService) issue(userID string) (*TokenPair, error) {
	access, err := jwt.GenerateAccessToken(userID, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := jwt.GenerateRefreshToken(userID, s.jwtSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
		RefreshToken: refresh,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email: %w", appErr.ErrInvalid)
	}
	return email, nil
}
