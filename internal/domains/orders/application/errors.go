package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

var (
	// ErrInvalidInput signals the request violated a domain invariant.
	ErrInvalidInput = errors.New("invalid order input")
	// ErrWriteFailure wraps any rejected gateway write.
	ErrWriteFailure = errors.New("order write failed")
	// ErrLoadFailure wraps a failed point read of the order collections.
	ErrLoadFailure = errors.New("orders could not be loaded")
	// ErrSubscriptionFailure marks a terminal error on an order stream.
	ErrSubscriptionFailure = errors.New("order stream failed")
	// ErrWriteInFlight is returned while the same control has a write pending.
	ErrWriteInFlight = errors.New("a write for this control is already in progress")
)

// WriteOp names the user action behind a gateway write.
type WriteOp string

const (
	WriteSave    WriteOp = "save"
	WritePayment WriteOp = "payment"
	WriteDelete  WriteOp = "delete"
)

// WriteError is a gateway write failure tagged with the action that caused it.
type WriteError struct {
	Op  WriteOp
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrWriteFailure, e.Op, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailure, e.Err}
}

func writeError(op WriteOp, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Op: op, Err: err}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidFormat) ||
		errors.Is(err, domain.ErrMissingSelection) ||
		errors.Is(err, domain.ErrUnknownProduct) ||
		errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrMissingOwner) ||
		errors.Is(err, domain.ErrMissingCustomer) ||
		errors.Is(err, domain.ErrNegativeQty) ||
		errors.Is(err, domain.ErrNegativePaid) ||
		errors.Is(err, domain.ErrInvalidSortCriteria) ||
		errors.Is(err, domain.ErrInvalidDirection) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// UserMessage converts an order error into the message shown to the vendor.
func UserMessage(err error) string {
	var writeErr *WriteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrEmptyName):
		return "No se pudo identificar el nombre del cliente."
	case errors.Is(err, domain.ErrInvalidFormat):
		return "Formato no válido. Usa 'Nombre Cantidad', ej: 'Ana 2'."
	case errors.Is(err, domain.ErrMissingSelection):
		return "Error: Debes seleccionar un producto."
	case errors.Is(err, domain.ErrUnknownProduct):
		return "El producto seleccionado no existe en el catálogo."
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Ingresa un monto de pago válido."
	case errors.Is(err, ErrWriteInFlight):
		return "Espera a que termine la operación anterior."
	case errors.As(err, &writeErr):
		switch writeErr.Op {
		case WriteDelete:
			return "No se pudo eliminar el pedido."
		case WritePayment:
			return "No se pudo registrar el pago."
		default:
			return "No se pudo guardar el pedido."
		}
	case errors.Is(err, ErrSubscriptionFailure), errors.Is(err, ErrLoadFailure):
		return "Error al cargar los pedidos."
	case errors.Is(err, ErrInvalidInput):
		return "Datos no válidos."
	default:
		return "Ocurrió un error. Intenta nuevamente."
	}
}
