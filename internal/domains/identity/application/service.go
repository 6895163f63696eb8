package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

// DefaultSessionTTL provides the fallback TTL when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// Service signs vendors in through the provider and issues HS256 API session
// tokens backed by a revocable session store.
type Service struct {
	provider ports.Provider
	sessions ports.SessionStore
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	observersMu  sync.Mutex
	observers    map[int]func(*domain.Principal)
	nextObserver int
}

type Option func(*Service)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source for deterministic testing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger injects the logger used for non-fatal sign-out problems.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(provider ports.Provider, sessions ports.SessionStore, secret []byte, opts ...Option) *Service {
	s := &Service{
		provider:  provider,
		sessions:  sessions,
		secret:    secret,
		ttl:       DefaultSessionTTL,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observers: map[int]func(*domain.Principal){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*ports.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	principal, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, mapError(err)
	}
	return s.open(ctx, principal)
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*ports.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}
	principal, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, mapError(err)
	}
	return s.open(ctx, principal)
}

func (s *Service) SignInWithIDToken(ctx context.Context, idToken string) (*ports.Session, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, domain.MapAuthError(domain.CodeInvalidIDToken, nil)
	}
	principal, err := s.provider.SignInWithIDToken(ctx, idToken)
	if err != nil {
		return nil, mapError(err)
	}
	return s.open(ctx, principal)
}

func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.ErrMissingEmail
	}
	return mapError(s.provider.SendPasswordReset(ctx, email))
}

// SignOut revokes the session token and, best effort, the provider's
// refresh tokens of its principal.
func (s *Service) SignOut(ctx context.Context, token string) error {
	principal, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	if err := s.provider.SignOut(ctx, principal.UID); err != nil {
		s.logger.WarnContext(ctx, "provider sign-out failed", slog.String("user.id", principal.UID), slog.String("error", err.Error()))
	}
	s.notify(nil)
	return nil
}

// Authenticate verifies a session token and returns its principal.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	principal, err := s.parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	ok, err := s.sessions.Exists(ctx, token)
	if err != nil {
		return domain.Principal{}, err
	}
	if !ok {
		return domain.Principal{}, fmt.Errorf("%w: revoked", ErrInvalidSession)
	}
	return principal, nil
}

func (s *Service) Observe(fn func(*domain.Principal)) func() {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.observersMu.Lock()
		defer s.observersMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Service) open(ctx context.Context, principal domain.Principal) (*ports.Session, error) {
	session, err := s.issue(principal)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, *session); err != nil {
		return nil, err
	}
	s.notify(&principal)
	return session, nil
}

func (s *Service) issue(principal domain.Principal) (*ports.Session, error) {
	if len(s.secret) == 0 {
		return nil, ErrSigningKey
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":   principal.UID,
		"email": principal.Email,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &ports.Session{Token: signed, Principal: principal, ExpiresAt: expiresAt}, nil
}

func (s *Service) parse(token string, opts ...jwt.ParserOption) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if len(s.secret) == 0 {
		return domain.Principal{}, ErrSigningKey
	}
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, fmt.Errorf("%w: unexpected claims", ErrInvalidSession)
	}
	uid, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if uid == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return domain.Principal{UID: uid, Email: email}, nil
}

func (s *Service) notify(principal *domain.Principal) {
	s.observersMu.Lock()
	observers := make([]func(*domain.Principal), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.observersMu.Unlock()
	for _, fn := range observers {
		if principal == nil {
			fn(nil)
			continue
		}
		p := *principal
		fn(&p)
	}
}

var _ ports.Service = (*Service)(nil)
