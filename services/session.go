package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"civicsync/apperr"
	"civicsync/metrics"
	"civicsync/models"
	"civicsync/repository"
	"civicsync/utils"

	"go.uber.org/zap"
)

// Identity exposes the current user to collaborators that only read it.
type Identity interface {
	CurrentUser() (models.User, bool)
}

// RegisterInput is the profile submitted when signing up.
type RegisterInput struct {
	Name     string  `validate:"required,max=50"`
	Email    string  `validate:"required,email"`
	Password string  `validate:"required,min=6"`
	Avatar   *string `validate:"omitempty"`
}

// SessionStore tracks at most one authenticated identity.
//
// It moves anonymous -> authenticating -> authenticated (or back to
// anonymous on failure), and authenticated -> anonymous on Logout. Two
// overlapping logins race; whichever finishes last decides the state.
type SessionStore struct {
	users   repository.UserRegistry
	ids     *utils.IDGenerator
	latency time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	current *models.User
	pending atomic.Int32
}

type SessionOption func(*SessionStore)

func WithSessionLatency(d time.Duration) SessionOption {
	return func(s *SessionStore) { s.latency = d }
}

func WithSessionLogger(log *zap.Logger) SessionOption {
	return func(s *SessionStore) { s.log = log }
}

func WithSessionIDs(ids *utils.IDGenerator) SessionOption {
	return func(s *SessionStore) { s.ids = ids }
}

func NewSessionStore(users repository.UserRegistry, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		users: users,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = utils.MustIDGenerator(1)
	}
	return s
}

// Login checks the credentials against the user registry.
func (s *SessionStore) Login(ctx context.Context, email, password string) (models.User, error) {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	user, err := s.authenticate(ctx, email, password)
	metrics.ObserveSessionOperation("login", resultOf(err))
	if err != nil {
		s.set(nil)
		return models.User{}, err
	}
	s.set(&user)
	s.log.Info("user logged in", zap.String("user_id", user.ID))
	return user, nil
}

func (s *SessionStore) authenticate(ctx context.Context, email, password string) (models.User, error) {
	if err := roundTrip(ctx, s.latency); err != nil {
		return models.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.User{}, apperr.Authentication("Invalid credentials")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.User{}, apperr.Authentication("Invalid credentials")
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.ComparePassword(password) {
		return models.User{}, apperr.Authentication("Invalid credentials")
	}
	return user.Public(), nil
}

// Register creates a citizen account and makes it the current identity. A
// failed registration leaves the current identity as it was.
func (s *SessionStore) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	s.pending.Add(1)
	defer s.pending.Add(-1)

	user, err := s.register(ctx, in)
	metrics.ObserveSessionOperation("register", resultOf(err))
	if err != nil {
		return models.User{}, err
	}
	s.set(&user)
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (s *SessionStore) register(ctx context.Context, in RegisterInput) (models.User, error) {
	if err := roundTrip(ctx, s.latency); err != nil {
		return models.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return models.User{}, apperr.Validation("%s", ValidationMessage(err))
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return models.User{}, apperr.Validation("User with this email already exists")
	case !errors.Is(err, repository.ErrNotFound):
		return models.User{}, fmt.Errorf("check existing user: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:        s.ids.NewUserID(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      models.RoleCitizen,
		Avatar:    in.Avatar,
		Password:  in.Password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(); err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return models.User{}, apperr.Validation("User with this email already exists")
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user.Public(), nil
}

// Restore binds an identity that was already verified elsewhere, such as
// the claims of a validated session token.
func (s *SessionStore) Restore(user models.User) {
	user = user.Public()
	s.set(&user)
}

// Logout clears the current identity. Calling it while anonymous is a no-op.
func (s *SessionStore) Logout() {
	s.set(nil)
	metrics.ObserveSessionOperation("logout", "ok")
}

func (s *SessionStore) IsAuthenticated() bool {
	_, ok := s.CurrentUser()
	return ok
}

func (s *SessionStore) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.User{}, false
	}
	return *s.current, true
}

// IsLoading is true while a login or register round-trip is outstanding.
func (s *SessionStore) IsLoading() bool {
	return s.pending.Load() > 0
}

func (s *SessionStore) set(user *models.User) {
	s.mu.Lock()
	s.current = user
	s.mu.Unlock()
}
