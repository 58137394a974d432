// Package auth registers users, verifies credentials and issues the access
// and refresh tokens used by the board API.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kanban/internal/apperr"
	"kanban/internal/models"
)

const (
	DefaultAccessTTL  = 2 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	maxPasswordBytes = 72

	refreshTokenBytes = 32
)

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasDigit   = regexp.MustCompile(`\d`)
	hasSpecial = regexp.MustCompile(`\W`)
)

// UserStore is the credential storage the service depends on.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByRefreshToken(ctx context.Context, token string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID int64, token string, expiry time.Time) error
}

// Config controls token signing and lifetimes.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Claims is the payload of an access token. UserID travels as the "id" claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
}

// Service implements registration, login and token rotation.
type Service struct {
	store    UserStore
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	validate *validator.Validate
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for auth events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New validates cfg, fills defaults and returns a ready service.
func New(store UserStore, cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("empty token signing key")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}

	s := &Service{
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckPassword enforces the password policy: one uppercase letter, one
// lowercase letter, one digit and one non-word character. bcrypt only hashes
// the first 72 bytes, so longer passwords are refused.
func CheckPassword(password string) error {
	switch {
	case len(password) > maxPasswordBytes:
		return apperr.Validationf("password must be at most %d bytes long", maxPasswordBytes)
	case !hasUpper.MatchString(password):
		return apperr.Validationf("password must contain at least one uppercase letter")
	case !hasLower.MatchString(password):
		return apperr.Validationf("password must contain at least one lowercase letter")
	case !hasDigit.MatchString(password):
		return apperr.Validationf("password must contain at least one number")
	case !hasSpecial.MatchString(password):
		return apperr.Validationf("password must contain at least one special character")
	}
	return nil
}

// Register creates an account and returns its public view.
func (s *Service) Register(ctx context.Context, email, name, password string) (models.UserView, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return models.UserView{}, apperr.Validationf("a valid email is required")
	}
	if strings.TrimSpace(name) == "" {
		return models.UserView{}, apperr.Validationf("name is required")
	}
	if err := CheckPassword(password); err != nil {
		return models.UserView{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return models.UserView{}, apperr.Conflictf("user already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return models.UserView{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return models.UserView{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, name, email, string(hash))
	if err != nil {
		return models.UserView{}, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID))
	return user.View(), nil
}

// Login checks the credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.TokenPair{}, apperr.Authf("invalid email or password")
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("password mismatch", slog.Int64("user_id", user.ID))
		return models.TokenPair{}, apperr.Authf("invalid email or password")
	}
	return s.renew(ctx, user)
}

// RefreshToken trades a live refresh token for a new pair. The old refresh
// token stops working because the stored value is overwritten.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, apperr.Authf("invalid refresh token")
	}
	user, err := s.store.GetUserByRefreshToken(ctx, refreshToken)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.TokenPair{}, apperr.Authf("invalid refresh token")
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	if !user.RefreshTokenExpiry.After(s.now()) {
		return models.TokenPair{}, apperr.Authf("invalid refresh token")
	}
	return s.renew(ctx, user)
}

// ParseAccessToken verifies signature, issuer, audience and expiry, and
// returns the claims of a valid token.
func (s *Service) ParseAccessToken(tokenString string) (Claims, error) {
	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Claims{}, apperr.Authf("invalid access token")
	}
	return claims, nil
}

// UserIDFromToken returns the numeric identity carried by an access token.
func (s *Service) UserIDFromToken(tokenString string) (int64, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return 0, apperr.Authf("access token carries no user id")
	}
	return id, nil
}

func (s *Service) renew(ctx context.Context, user models.User) (models.TokenPair, error) {
	access, err := s.accessToken(user)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := s.store.SetRefreshToken(ctx, user.ID, refresh, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) accessToken(user models.User) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Name,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
		UserID: strconv.FormatInt(user.ID, 10),
	}
	if s.cfg.Issuer != "" {
		claims.Issuer = s.cfg.Issuer
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
