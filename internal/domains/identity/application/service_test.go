package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

type fakeProvider struct {
	principal  domain.Principal
	err        error
	signedOut  []string
	signOutErr error
}

func (f *fakeProvider) SignIn(context.Context, string, string) (domain.Principal, error) {
	return f.principal, f.err
}

func (f *fakeProvider) SignUp(context.Context, string, string) (domain.Principal, error) {
	return f.principal, f.err
}

func (f *fakeProvider) SendPasswordReset(context.Context, string) error { return f.err }

func (f *fakeProvider) SignInWithIDToken(context.Context, string) (domain.Principal, error) {
	return f.principal, f.err
}

func (f *fakeProvider) SignOut(_ context.Context, uid string) error {
	f.signedOut = append(f.signedOut, uid)
	return f.signOutErr
}

type fakeSessionStore struct {
	sessions map[string]ports.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]ports.Session{}}
}

func (f *fakeSessionStore) Save(_ context.Context, session ports.Session) error {
	f.sessions[session.Token] = session
	return nil
}

func (f *fakeSessionStore) Delete(_ context.Context, token string) error {
	if _, ok := f.sessions[token]; !ok {
		return ports.ErrNotFound
	}
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionStore) Exists(_ context.Context, token string) (bool, error) {
	_, ok := f.sessions[token]
	return ok, nil
}

func (f *fakeSessionStore) PurgeExpired(context.Context) error { return nil }

var secret = []byte("test-secret")

func TestSignIn_IssuesVerifiableSession(t *testing.T) {
	provider := &fakeProvider{principal: domain.Principal{UID: "u1", Email: "ana@example.com"}}
	sessions := newFakeSessionStore()
	svc := NewService(provider, sessions, secret)
	ctx := context.Background()

	session, err := svc.SignIn(ctx, " ana@example.com ", "secreto")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Contains(t, sessions.sessions, session.Token)

	principal, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", principal.UID)
	assert.Equal(t, "ana@example.com", principal.Email)
}

func TestSignIn_ValidatesBeforeCallingProvider(t *testing.T) {
	provider := &fakeProvider{err: errors.New("must not be called")}
	svc := NewService(provider, newFakeSessionStore(), secret)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "", "x")
	require.ErrorIs(t, err, domain.ErrMissingCredentials)
	_, err = svc.SignUp(ctx, "ana@example.com", "")
	require.ErrorIs(t, err, domain.ErrMissingCredentials)

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Por favor, ingresa email y contraseña.", authErr.Message)

	err = svc.SendPasswordReset(ctx, "  ")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Ingresa tu email para enviarte un enlace de recuperación.", authErr.Message)
}

func TestSignIn_ProviderErrorsBecomeAuthErrors(t *testing.T) {
	provider := &fakeProvider{err: domain.MapAuthError(domain.CodeWrongPassword, nil)}
	svc := NewService(provider, newFakeSessionStore(), secret)

	_, err := svc.SignIn(context.Background(), "ana@example.com", "x")
	require.ErrorIs(t, err, &domain.AuthError{Code: domain.CodeWrongPassword})

	provider.err = errors.New("connection reset")
	_, err = svc.SignIn(context.Background(), "ana@example.com", "x")
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Ocurrió un error. Intenta nuevamente.", authErr.Message)
}

func TestAuthenticate_RejectsExpiredRevokedAndForeignTokens(t *testing.T) {
	provider := &fakeProvider{principal: domain.Principal{UID: "u1"}}
	sessions := newFakeSessionStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(provider, sessions, secret, WithClock(func() time.Time { return now }), WithSessionTTL(time.Hour))
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)

	other := NewService(provider, sessions, []byte("other-secret"))
	_, err = other.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	now = now.Add(2 * time.Hour)
	_, err = svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, ErrInvalidSession)

	now = now.Add(-2 * time.Hour)
	require.NoError(t, svc.SignOut(ctx, session.Token))
	_, err = svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, ErrInvalidSession)
	assert.Equal(t, []string{"u1"}, provider.signedOut)

	_, err = svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestObserve_PublishesTransitions(t *testing.T) {
	provider := &fakeProvider{principal: domain.Principal{UID: "u1", Email: "ana@example.com"}, signOutErr: errors.New("offline")}
	svc := NewService(provider, newFakeSessionStore(), secret)
	ctx := context.Background()

	var seen []*domain.Principal
	cancel := svc.Observe(func(p *domain.Principal) { seen = append(seen, p) })

	session, err := svc.SignIn(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, session.Token))
	cancel()
	_, err = svc.SignIn(ctx, "ana@example.com", "secreto")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	assert.Equal(t, "u1", seen[0].UID)
	assert.Nil(t, seen[1])
}

func TestIssue_RequiresSecret(t *testing.T) {
	svc := NewService(&fakeProvider{principal: domain.Principal{UID: "u1"}}, newFakeSessionStore(), nil)
	_, err := svc.SignIn(context.Background(), "ana@example.com", "secreto")
	require.ErrorIs(t, err, ErrSigningKey)
}
