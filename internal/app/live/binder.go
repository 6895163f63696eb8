// Package live keeps an order session following the signed-in vendor.
package live

import (
	"context"
	"log/slog"
	"sync"

	identitydomain "github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	identityports "github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
)

// Binder starts the order session when a vendor signs in and stops it when
// they sign out. Switching accounts restarts the session for the new owner.
type Binder struct {
	session *application.Session
	logger  *slog.Logger

	mu    sync.Mutex
	ctx   context.Context
	owner string
}

// Bind registers the binder with identity until ctx is done or the
// returned func is called.
func Bind(ctx context.Context, identity identityports.Service, session *application.Session, logger *slog.Logger) (*Binder, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Binder{session: session, logger: logger, ctx: ctx}
	unobserve := identity.Observe(b.onIdentity)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			unobserve()
			b.session.Stop()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return b, stop
}

// Owner returns the uid the session currently follows.
func (b *Binder) Owner() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

func (b *Binder) onIdentity(principal *identitydomain.Principal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if principal == nil {
		if b.owner == "" {
			return
		}
		b.logger.Info("vendor signed out, stopping order session", slog.String("owner.id", b.owner))
		b.owner = ""
		b.session.Stop()
		return
	}
	if principal.UID == b.owner {
		return
	}
	b.owner = principal.UID
	if err := b.session.Start(b.ctx, principal.UID); err != nil {
		b.logger.Error("order session failed to start",
			slog.String("owner.id", principal.UID), slog.String("error", err.Error()))
	}
}
