// Package auth issues and verifies the bearer tokens oracle clients present.
// Tokens are HS256 JWTs signed with a shared key; the subject is recorded as
// the requester of every commitment submitted with the token.
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

const minKeyBytes = 16

// DefaultTTL bounds the lifetime of issued tokens.
const DefaultTTL = time.Hour

// authEnv holds raw env values before post-parse validation.
type authEnv struct {
	Issuer   string `env:"RANDOMPROOF_ORACLE_ISSUER" envDefault:"randomproof-oracle"`
	Audience string `env:"RANDOMPROOF_ORACLE_AUDIENCE" envDefault:"randomproof"`
	HMACKey  string `env:"RANDOMPROOF_ORACLE_HMAC_KEY"`
}

// Config defines how tokens are issued and verified.
type Config struct {
	Issuer   string
	Audience string
	Key      []byte
	Now      func() time.Time
}

// Claims captures validated token claims.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	JWTID     string
}

// LoadConfigFromEnv reads the token configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw authEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse oracle auth env: %w", err)
	}
	return configFrom(raw, now)
}

// LoadConfigFromMap is LoadConfigFromEnv over an explicit environment.
func LoadConfigFromMap(environ map[string]string, now func() time.Time) (Config, error) {
	var raw authEnv
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse oracle auth env: %w", err)
	}
	return configFrom(raw, now)
}

func configFrom(raw authEnv, now func() time.Time) (Config, error) {
	keyHex := strings.TrimSpace(raw.HMACKey)
	if keyHex == "" {
		return Config{}, fmt.Errorf("RANDOMPROOF_ORACLE_HMAC_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return Config{}, fmt.Errorf("decode oracle hmac key: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	cfg := Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      key,
		Now:      now,
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Issuer == "" || c.Audience == "" {
		return errors.New("oracle auth issuer and audience are required")
	}
	if len(c.Key) < minKeyBytes {
		return fmt.Errorf("oracle hmac key must be at least %d bytes", minKeyBytes)
	}
	return nil
}

func (c Config) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Issue signs a token for subject valid for ttl.
func Issue(cfg Config, subject string, ttl time.Duration) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature, issuer, audience and lifetime.
func Verify(cfg Config, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "bearer token is required")
	}
	if err := cfg.validate(); err != nil {
		return Claims{}, err
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.now),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthorized, "token subject is required")
	}
	return Claims{
		Subject:   parsed.Subject,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
		JWTID:     parsed.ID,
	}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token was issued for another service", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.CodeUnauthorized, "token alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeUnauthorized, "token is invalid", err)
}
