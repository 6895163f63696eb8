package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Principal is the signed-in vendor. UID scopes every order record.
type Principal struct {
	UID   string
	Email string
}

// Provider error codes, in the hosted identity provider's vocabulary.
const (
	CodeEmailInUse              = "auth/email-already-in-use"
	CodeInvalidEmail            = "auth/invalid-email"
	CodeWeakPassword            = "auth/weak-password"
	CodeNetworkFailed           = "auth/network-request-failed"
	CodeTooManyRequests         = "auth/too-many-requests"
	CodeOperationNotAllowed     = "auth/operation-not-allowed"
	CodeInvalidCredential       = "auth/invalid-credential"
	CodeInvalidLoginCredentials = "auth/invalid-login-credentials"
	CodeUserNotFound            = "auth/user-not-found"
	CodeWrongPassword           = "auth/wrong-password"
	CodeInvalidIDToken          = "auth/invalid-id-token"
	CodeSessionExpired          = "auth/session-expired"
	CodeMissingCredentials      = "auth/missing-credentials"
	CodeMissingEmail            = "auth/missing-email"
)

var (
	// ErrUnauthenticated is returned when no valid session backs a request.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = &AuthError{Code: CodeMissingCredentials, Message: "Por favor, ingresa email y contraseña."}
	// ErrMissingEmail is returned when a password reset names no email.
	ErrMissingEmail = &AuthError{Code: CodeMissingEmail, Message: "Ingresa tu email para enviarte un enlace de recuperación."}
)

// AuthError is an identity failure carrying the provider code and the
// message shown to the vendor.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches another AuthError by code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code != "" && other.Code == e.Code
}

// MapAuthError converts a provider code to an AuthError with its message.
func MapAuthError(code string, cause error) *AuthError {
	return &AuthError{Code: code, Message: AuthMessage(code), Err: cause}
}

// AuthMessage returns the vendor-facing message for a provider code.
func AuthMessage(code string) string {
	switch code {
	case CodeEmailInUse:
		return `Ese email ya está registrado. Inicia sesión o usa "¿Olvidaste tu contraseña?"`
	case CodeInvalidEmail:
		return "El email no es válido."
	case CodeWeakPassword:
		return "La contraseña debe tener al menos 6 caracteres."
	case CodeNetworkFailed:
		return "Error de red. Verifica tu conexión a internet."
	case CodeTooManyRequests:
		return "Demasiados intentos. Intenta de nuevo más tarde."
	case CodeOperationNotAllowed:
		return "El método de autenticación no está habilitado en Firebase."
	case CodeInvalidCredential, CodeInvalidLoginCredentials:
		return "Credenciales inválidas. Revisa tu email y contraseña."
	case CodeUserNotFound:
		return "No existe una cuenta con ese email."
	case CodeWrongPassword:
		return "Contraseña incorrecta."
	case CodeSessionExpired:
		return "Tu sesión expiró. Inicia sesión nuevamente."
	case CodeMissingCredentials:
		return ErrMissingCredentials.Message
	case CodeMissingEmail:
		return ErrMissingEmail.Message
	case "":
		return "Ocurrió un error. Intenta nuevamente."
	default:
		return "Ocurrió un error. (" + code + ")"
	}
}

// ConfigLooksPlaceholder reports whether the provider settings are still the
// sample values, which makes every sign-in fail with a confusing error.
func ConfigLooksPlaceholder(apiKey, projectID string) bool {
	return strings.TrimSpace(apiKey) == "" ||
		strings.Contains(apiKey, "XXXXXXXXXXXXXXXX") ||
		strings.Contains(projectID, "your-project-id")
}
