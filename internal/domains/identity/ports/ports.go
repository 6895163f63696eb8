package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
)

var ErrNotFound = errors.New("session not found")

// Provider is the hosted identity service. Failures are returned as
// *domain.AuthError carrying the provider code.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (domain.Principal, error)
	SignUp(ctx context.Context, email, password string) (domain.Principal, error)
	SendPasswordReset(ctx context.Context, email string) error
	// SignInWithIDToken accepts an ID token obtained from a third-party
	// OAuth popup or redirect.
	SignInWithIDToken(ctx context.Context, idToken string) (domain.Principal, error)
	SignOut(ctx context.Context, uid string) error
}

// Session is an issued API session.
type Session struct {
	Token     string
	Principal domain.Principal
	ExpiresAt time.Time
}

// SessionStore persists issued API sessions so sign-out can revoke them.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, token string) error
	Exists(ctx context.Context, token string) (bool, error)
	PurgeExpired(ctx context.Context) error
}

// Service exposes the identity use cases to adapters.
type Service interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignInWithIDToken(ctx context.Context, idToken string) (*Session, error)
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
	// Observe registers fn for identity transitions: a principal on sign-in,
	// nil on sign-out. The returned func unregisters it.
	Observe(fn func(*domain.Principal)) func()
}
