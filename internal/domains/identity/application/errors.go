package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
)

var (
	// ErrSigningKey is returned when no session signing secret is configured.
	ErrSigningKey = errors.New("session signing secret is not configured")
	// ErrInvalidSession wraps tokens that fail verification or were revoked.
	ErrInvalidSession = fmt.Errorf("%w: invalid session", domain.ErrUnauthenticated)
)

// mapError guarantees provider failures surface as *domain.AuthError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return domain.MapAuthError("", err)
}
