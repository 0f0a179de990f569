// Package application contains use-case orchestration services.
package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/smspanel/internal/domain/port/driven"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// adminCredentialService is the credential store key for the admin password hash.
const adminCredentialService = "admin.password_hash"

const tokenIssuer = "smspanel"

// minPasswordLength applies to password changes only; the seed password from
// the environment is accepted as configured.
const minPasswordLength = 8

// AuthConfig carries the externally supplied auth settings.
type AuthConfig struct {
	AdminUsername string
	AdminPassword string // seeds the stored hash when none exists
	JWTSecret     string
	TokenTTL      time.Duration
	APIKey        string
}

// AuthService issues and verifies admin bearer tokens and checks the static
// ingestion API key. Both gates are stateless request guards: a token carries
// its own claims and the API key is a pure comparison, so instances are
// freely replicable.
type AuthService struct {
	creds  driven.CredentialStore
	config AuthConfig
	logger *slog.Logger

	mu           sync.RWMutex
	passwordHash []byte
}

// NewAuthService creates an AuthService and resolves the active password
// hash: a hash already in the credential store wins over the environment
// seed. When credential storage is disabled the seed is hashed in memory and
// password changes are rejected.
func NewAuthService(ctx context.Context, creds driven.CredentialStore, config AuthConfig, logger *slog.Logger) (*AuthService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &AuthService{
		creds:  creds,
		config: config,
		logger: logger.With("service", "auth"),
	}

	stored, err := creds.Get(ctx, adminCredentialService)
	if err != nil && !errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		return nil, fmt.Errorf("load stored admin credential: %w", err)
	}

	if stored != "" {
		s.passwordHash = []byte(stored)
		return s, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	s.passwordHash = hash

	if err := creds.Set(ctx, adminCredentialService, string(hash)); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			s.logger.Warn("credential storage disabled, password changes will not persist")
		} else {
			return nil, fmt.Errorf("seed admin credential: %w", err)
		}
	}

	return s, nil
}

// Login verifies the submitted admin credentials and issues a signed bearer
// token with a username claim and the configured validity window.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.AdminUsername)) == 1

	s.mu.RLock()
	hash := s.passwordHash
	s.mu.RUnlock()

	// Always run the bcrypt comparison so a bad username costs the same as a
	// bad password.
	passwordOK := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil

	if !usernameOK || !passwordOK {
		s.logger.WarnContext(ctx, "login rejected", "username", username)
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.config.AdminUsername,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(s.config.TokenTTL).Unix(),
		"iss": tokenIssuer,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sign token", "error", err)
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// VerifyToken validates a bearer token and returns the username claim.
// Missing, malformed, expired, and badly-signed tokens all fail closed with
// ErrTokenInvalid.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrTokenInvalid
	}

	username, _ := claims["sub"].(string)
	if username == "" {
		return "", ErrTokenInvalid
	}

	return username, nil
}

// CheckAPIKey reports whether the presented key matches the configured
// ingestion secret. Comparison is constant-time.
func (s *AuthService) CheckAPIKey(key string) bool {
	if key == "" || s.config.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) == 1
}

// ChangePassword verifies the current password and stores a bcrypt hash of
// the new one. The hash is persisted before the in-memory copy is swapped so
// a storage failure leaves the old password in effect.
func (s *AuthService) ChangePassword(ctx context.Context, current, newPassword string) error {
	s.mu.RLock()
	hash := s.passwordHash
	s.mu.RUnlock()

	if bcrypt.CompareHashAndPassword(hash, []byte(current)) != nil {
		return ErrInvalidCredentials
	}

	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.creds.Set(ctx, adminCredentialService, string(newHash)); err != nil {
		return fmt.Errorf("store new password hash: %w", err)
	}

	s.mu.Lock()
	s.passwordHash = newHash
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "admin password changed")
	return nil
}
