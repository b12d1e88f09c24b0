package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatsphere-server/internal/presence"
	"github.com/vovakirdan/chatsphere-server/internal/store"
	"github.com/vovakirdan/chatsphere-server/internal/utils"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidUsername     = errors.New("username must be 3-32 characters: letters, digits, underscore")
	ErrInvalidPassword     = errors.New("password must be at least 6 characters")
)

// Config holds token signing parameters.
type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service implements account registration and the token lifecycle:
// issue on login, rotate on refresh, revoke on logout.
type Service struct {
	users    store.UserStore
	tokens   store.TokenStore
	presence presence.Store
	cfg      Config
	log      zerolog.Logger
}

// NewService creates an auth service.
func NewService(users store.UserStore, tokens store.TokenStore, pres presence.Store, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		presence: pres,
		cfg:      cfg,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// Register creates a new account. The display name defaults to the
// username when empty.
func (s *Service) Register(ctx context.Context, email, username, displayName, password string) (*store.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < 6 {
		return nil, ErrInvalidPassword
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, username, displayName, hash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, *TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status != store.UserStatusActive {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return user, pair, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new
// pair is issued. Revoked, expired and unknown tokens are all rejected
// the same way.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	rt, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, ErrInvalidRefreshToken
	}

	if _, err := s.users.GetUserByID(ctx, rt.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("revoke old token: %w", err)
	}

	return s.issuePair(ctx, rt.UserID)
}

// Logout revokes the refresh token and blacklists the access token
// until it would have expired on its own.
func (s *Service) Logout(ctx context.Context, refreshToken, accessJTI string, accessExpires time.Time) error {
	if refreshToken != "" {
		if err := s.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	if accessJTI != "" {
		ttl := time.Until(accessExpires)
		if err := s.presence.BlacklistToken(ctx, accessJTI, ttl); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}

// Authenticate verifies an access token and resolves the account behind
// it. The error distinguishes a bad or revoked token from a token whose
// user no longer exists.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, *Claims, error) {
	claims, err := VerifyAccessToken([]byte(s.cfg.Secret), s.cfg.Issuer, s.cfg.Audience, token)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := s.presence.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		// Presence backend trouble must not lock everyone out.
		s.log.Warn().Err(err).Msg("blacklist check failed, skipping")
	} else if revoked {
		return nil, nil, ErrTokenRevoked
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if user.Status != store.UserStatusActive {
		return nil, nil, ErrUserNotFound
	}
	return user, claims, nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (*TokenPair, error) {
	access, _, err := GenerateAccessToken([]byte(s.cfg.Secret), s.cfg.Issuer, s.cfg.Audience, userID, s.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refresh, err := utils.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.SaveRefreshToken(ctx, refresh, userID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || len(email) > 254 {
		return ErrInvalidEmail
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}
