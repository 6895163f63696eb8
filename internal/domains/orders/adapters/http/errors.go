package http

import (
	"errors"

	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	apierrors "github.com/Apurer/vendor-orders/internal/shared/errors"
)

// MapError converts order errors to problem responses carrying the vendor
// message in detail.
func MapError(err error) (apierrors.ProblemDetail, bool) {
	message := application.UserMessage(err)
	var writeErr *application.WriteError
	switch {
	case errors.Is(err, application.ErrWriteInFlight):
		return apierrors.ErrConflict.WithDetail(message).WithCode("orders/write-in-flight"), true
	case errors.Is(err, domain.ErrMissingOwner):
		return apierrors.ErrUnauthorized.WithDetail(message).WithCode("orders/missing-owner"), true
	case errors.Is(err, application.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(message).WithCode(invalidCode(err)), true
	case errors.As(err, &writeErr):
		return apierrors.ErrUnavailable.WithDetail(message).WithCode("orders/" + string(writeErr.Op) + "-failed"), true
	case errors.Is(err, application.ErrWriteFailure):
		return apierrors.ErrUnavailable.WithDetail(message).WithCode("orders/write-failed"), true
	case errors.Is(err, application.ErrLoadFailure), errors.Is(err, application.ErrSubscriptionFailure):
		return apierrors.ErrUnavailable.WithDetail(message).WithCode("orders/load-failed"), true
	default:
		return apierrors.ProblemDetail{}, false
	}
}

func invalidCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyName):
		return "orders/empty-name"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "orders/invalid-format"
	case errors.Is(err, domain.ErrMissingSelection):
		return "orders/missing-selection"
	case errors.Is(err, domain.ErrUnknownProduct):
		return "orders/unknown-product"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "orders/invalid-amount"
	default:
		return "orders/invalid-input"
	}
}
