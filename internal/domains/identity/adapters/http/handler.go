// Package http exposes sign-in and session endpoints and the bearer
// middleware guarding the rest of the API.
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/vendor-orders/internal/domains/identity/application"
	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	apierrors "github.com/Apurer/vendor-orders/internal/shared/errors"
)

const principalKey = "identity.principal"

// Credentials is the body of sign-up and sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetRequest is the body of a password reset.
type ResetRequest struct {
	Email string `json:"email"`
}

// IDTokenRequest carries an ID token from a third-party OAuth flow.
type IDTokenRequest struct {
	IDToken string `json:"idToken"`
}

// SessionResponse is returned after a successful sign-in.
type SessionResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresAt string `json:"expiresAt"`
	UID       string `json:"uid"`
	Email     string `json:"email"`
}

// Handler serves the /auth endpoints.
type Handler struct {
	service   ports.Service
	responder *apierrors.ChainedResponder
}

func NewHandler(service ports.Service) *Handler {
	return &Handler{service: service, responder: apierrors.NewChainedResponder("", MapError)}
}

// Register mounts the public auth routes. Sign-out requires a bearer token.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.POST("/auth/signup", h.SignUp)
	rg.POST("/auth/signin", h.SignIn)
	rg.POST("/auth/reset", h.SendPasswordReset)
	rg.POST("/auth/idtoken", h.SignInWithIDToken)
	rg.POST("/auth/signout", h.SignOut)
}

// Post /v1/auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var payload Credentials
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	session, err := h.service.SignUp(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(session))
}

// Post /v1/auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var payload Credentials
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	session, err := h.service.SignIn(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// Post /v1/auth/reset
func (h *Handler) SendPasswordReset(c *gin.Context) {
	var payload ResetRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	if err := h.service.SendPasswordReset(c.Request.Context(), payload.Email); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Post /v1/auth/idtoken
func (h *Handler) SignInWithIDToken(c *gin.Context) {
	var payload IDTokenRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	session, err := h.service.SignInWithIDToken(c.Request.Context(), payload.IDToken)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// Post /v1/auth/signout
func (h *Handler) SignOut(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		h.responder.RespondError(c, domain.ErrUnauthenticated)
		return
	}
	if err := h.service.SignOut(c.Request.Context(), token); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequireSession rejects requests without a live session token. The token is
// read from the Authorization header, or from the access_token query
// parameter for clients that cannot set headers such as browser websockets.
func RequireSession(service ports.Service, responder *apierrors.ChainedResponder) gin.HandlerFunc {
	if responder == nil {
		responder = apierrors.NewChainedResponder("", MapError)
	}
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("access_token"))
		}
		principal, err := service.Authenticate(c.Request.Context(), token)
		if err != nil {
			responder.RespondError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by RequireSession.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

// OwnerID returns the uid of the signed-in principal, or "".
func OwnerID(c *gin.Context) string {
	principal, _ := PrincipalFrom(c)
	return principal.UID
}

// MapError converts identity errors to problem responses.
func MapError(err error) (apierrors.ProblemDetail, bool) {
	var authErr *domain.AuthError
	switch {
	case errors.Is(err, application.ErrSigningKey):
		return apierrors.ErrInternal.WithDetail("session signing is not configured"), true
	case errors.Is(err, domain.ErrUnauthenticated):
		return apierrors.ErrUnauthorized.WithDetail(domain.AuthMessage(domain.CodeSessionExpired)).
			WithCode(domain.CodeSessionExpired), true
	case errors.As(err, &authErr):
		return problemFor(authErr.Code).WithDetail(authErr.Message).WithCode(authErr.Code), true
	default:
		return apierrors.ProblemDetail{}, false
	}
}

func problemFor(code string) apierrors.ProblemDetail {
	switch code {
	case domain.CodeEmailInUse:
		return apierrors.ErrConflict
	case domain.CodeInvalidEmail, domain.CodeWeakPassword, domain.CodeMissingCredentials, domain.CodeMissingEmail:
		return apierrors.ErrValidation
	case domain.CodeTooManyRequests:
		return apierrors.ErrTooManyRequests
	case domain.CodeNetworkFailed:
		return apierrors.ErrUnavailable
	case domain.CodeOperationNotAllowed:
		return apierrors.ErrForbidden
	default:
		return apierrors.ErrUnauthorized
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func toSessionResponse(session *ports.Session) SessionResponse {
	return SessionResponse{
		Token:     session.Token,
		TokenType: "Bearer",
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		UID:       session.Principal.UID,
		Email:     session.Principal.Email,
	}
}
