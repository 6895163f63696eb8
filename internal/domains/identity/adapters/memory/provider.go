package memory

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

var _ ports.Provider = (*Provider)(nil)

const minPasswordLength = 6

type account struct {
	uid  string
	hash []byte
}

// Provider is an in-process identity provider for development and tests. It
// fails with the same codes as the hosted provider.
type Provider struct {
	mu       sync.RWMutex
	accounts map[string]account
	idTokens map[string]domain.Principal
}

func NewProvider() *Provider {
	return &Provider{accounts: map[string]account{}, idTokens: map[string]domain.Principal{}}
}

// RegisterIDToken makes idToken resolve to principal in SignInWithIDToken.
func (p *Provider) RegisterIDToken(idToken string, principal domain.Principal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokens[idToken] = principal
}

func (p *Provider) SignUp(_ context.Context, email, password string) (domain.Principal, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.Principal{}, domain.MapAuthError(domain.CodeInvalidEmail, nil)
	}
	if len(password) < minPasswordLength {
		return domain.Principal{}, domain.MapAuthError(domain.CodeWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Principal{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[email]; ok {
		return domain.Principal{}, domain.MapAuthError(domain.CodeEmailInUse, nil)
	}
	acc := account{uid: uuid.NewString(), hash: hash}
	p.accounts[email] = acc
	return domain.Principal{UID: acc.uid, Email: email}, nil
}

func (p *Provider) SignIn(_ context.Context, email, password string) (domain.Principal, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.Principal{}, domain.MapAuthError(domain.CodeInvalidEmail, nil)
	}
	p.mu.RLock()
	acc, ok := p.accounts[email]
	p.mu.RUnlock()
	if !ok {
		return domain.Principal{}, domain.MapAuthError(domain.CodeInvalidLoginCredentials, nil)
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return domain.Principal{}, domain.MapAuthError(domain.CodeInvalidLoginCredentials, err)
	}
	return domain.Principal{UID: acc.uid, Email: email}, nil
}

func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.MapAuthError(domain.CodeInvalidEmail, nil)
	}
	p.mu.RLock()
	_, ok := p.accounts[email]
	p.mu.RUnlock()
	if !ok {
		return domain.MapAuthError(domain.CodeUserNotFound, nil)
	}
	return nil
}

func (p *Provider) SignInWithIDToken(_ context.Context, idToken string) (domain.Principal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	principal, ok := p.idTokens[idToken]
	if !ok {
		return domain.Principal{}, domain.MapAuthError(domain.CodeInvalidIDToken, nil)
	}
	return principal, nil
}

func (p *Provider) SignOut(context.Context, string) error { return nil }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
