package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
	"github.com/Apurer/vendor-orders/internal/domains/identity/application"
	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	apierrors "github.com/Apurer/vendor-orders/internal/shared/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *memory.Provider) {
	t.Helper()
	provider := memory.NewProvider()
	service := application.NewService(provider, memory.NewSessionStore(), []byte("secret"))
	router := gin.New()
	v1 := router.Group("/v1")
	NewHandler(service).Register(v1)
	authed := v1.Group("", RequireSession(service, nil))
	authed.GET("/me", func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"uid": principal.UID, "owner": OwnerID(c)})
	})
	return router, provider
}

func post(t *testing.T, router *gin.Engine, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func problemOf(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ProblemDetail {
	t.Helper()
	var problem apierrors.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestSignUpSignInAndSignOut(t *testing.T) {
	router, _ := newRouter(t)

	rec := post(t, router, "/v1/auth/signup", Credentials{Email: "ana@example.com", Password: "secreto"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(t, router, "/v1/auth/signin", Credentials{Email: "ana@example.com", Password: "secreto"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "Bearer", session.TokenType)
	assert.NotEmpty(t, session.UID)

	rec = get(router, "/v1/me", session.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), session.UID)

	rec = get(router, "/v1/me?access_token="+session.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusNoContent, post(t, router, "/v1/auth/signout", struct{}{}, session.Token).Code)

	rec = get(router, "/v1/me", session.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	problem := problemOf(t, rec)
	assert.Equal(t, domain.CodeSessionExpired, problem.Extensions["code"])
	assert.Equal(t, "Tu sesión expiró. Inicia sesión nuevamente.", problem.Detail)
}

func TestAuthErrorsCarryLocalizedMessages(t *testing.T) {
	router, _ := newRouter(t)
	require.Equal(t, http.StatusCreated,
		post(t, router, "/v1/auth/signup", Credentials{Email: "ana@example.com", Password: "secreto"}, "").Code)

	cases := []struct {
		path   string
		body   any
		status int
		detail string
	}{
		{"/v1/auth/signin", Credentials{Email: "", Password: ""}, http.StatusBadRequest, "Por favor, ingresa email y contraseña."},
		{"/v1/auth/signup", Credentials{Email: "ana@example.com", Password: "secreto"}, http.StatusConflict, domain.AuthMessage(domain.CodeEmailInUse)},
		{"/v1/auth/signup", Credentials{Email: "beto@example.com", Password: "123"}, http.StatusBadRequest, "La contraseña debe tener al menos 6 caracteres."},
		{"/v1/auth/reset", ResetRequest{}, http.StatusBadRequest, "Ingresa tu email para enviarte un enlace de recuperación."},
	}
	for _, tc := range cases {
		rec := post(t, router, tc.path, tc.body, "")
		require.Equal(t, tc.status, rec.Code, tc.path)
		assert.Equal(t, tc.detail, problemOf(t, rec).Detail, tc.path)
	}

	rec := post(t, router, "/v1/auth/signin", Credentials{Email: "ana@example.com", Password: "otra-clave"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignInWithIDToken(t *testing.T) {
	router, provider := newRouter(t)
	provider.RegisterIDToken("google-token", domain.Principal{UID: "g-1", Email: "g@example.com"})

	rec := post(t, router, "/v1/auth/idtoken", IDTokenRequest{IDToken: "google-token"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "g-1", session.UID)

	rec = post(t, router, "/v1/auth/idtoken", IDTokenRequest{IDToken: "forged"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_RejectsMissingToken(t *testing.T) {
	router, _ := newRouter(t)
	rec := get(router, "/v1/me", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierrors.TypeUnauthorized, problemOf(t, rec).Type)
	assert.Equal(t, http.StatusUnauthorized, post(t, router, "/v1/auth/signout", struct{}{}, "").Code)
}

func TestAuthRoutes_RejectMalformedJSON(t *testing.T) {
	router, _ := newRouter(t)
	for _, path := range []string{"/v1/auth/signin", "/v1/auth/signup", "/v1/auth/reset", "/v1/auth/idtoken"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(`{"email":`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, path)
		problem := problemOf(t, rec)
		assert.Equal(t, apierrors.TypeValidation, problem.Type, path)
		assert.Equal(t, path, problem.Instance)
	}
}
