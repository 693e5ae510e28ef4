package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/example/foodhall/pkg/apperr"
	"github.com/example/foodhall/pkg/auth"
	"github.com/example/foodhall/pkg/events"
	"github.com/example/foodhall/pkg/models"
	"github.com/example/foodhall/pkg/repository"
	"go.uber.org/zap"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type AuthResult struct {
	Token string         `json:"token"`
	User  models.Profile `json:"user"`
}

type AuthService struct {
	users  repository.UserRepository
	cache  repository.Cache
	hasher *auth.PasswordHasher
	tokens *auth.TokenIssuer
	events events.Publisher
	logger *zap.Logger
}

func NewAuthService(
	users repository.UserRepository,
	cache repository.Cache,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	publisher events.Publisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		cache:  cache,
		hasher: hasher,
		tokens: tokens,
		events: publisher,
		logger: logger.Named("auth-service"),
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, apperr.InvalidInput("All fields are required")
	}
	if !emailPattern.MatchString(email) {
		return nil, apperr.InvalidInput("Invalid email")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.InvalidInput("Password must be at least 8 characters")
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperr.Conflict("User already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, "user")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleUser}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, storeErr(err, "user")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.Hex()))
	s.events.Publish(events.Event{
		Kind:     events.UserRegistered,
		EntityID: user.ID.Hex(),
		UserID:   user.ID.Hex(),
	})
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.InvalidInput("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User doesn't exist")
		}
		return nil, storeErr(err, "user")
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}
	return s.issue(user)
}

// User loads the account behind a verified token.
func (s *AuthService) User(ctx context.Context, userID string) (*models.User, error) {
	oid, err := userIDFrom(userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "User")
	}
	return user, nil
}

// Profile serves from cache when possible; the token carries only the id.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	if cached, err := s.cache.GetProfile(ctx, userID); err == nil {
		return cached, nil
	}

	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	if err := s.cache.SetProfile(ctx, &profile); err != nil {
		s.logger.Warn("Failed to cache profile", zap.String("user_id", userID), zap.Error(err))
	}
	return &profile, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to issue token", err)
	}
	return &AuthResult{Token: token, User: user.Profile()}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
