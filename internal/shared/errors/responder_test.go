package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

func respond(t *testing.T, r *ChainedResponder, err error) (*httptest.ResponseRecorder, ProblemDetail) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	r.RespondError(c, err)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return rec, problem
}

func TestChainedResponder_UsesFirstMatchingMapper(t *testing.T) {
	r := NewChainedResponder("", func(err error) (ProblemDetail, bool) {
		if errors.Is(err, errBusy) {
			return ErrConflict.WithDetail("Espera a que termine la operación anterior.").WithCode("orders/write-in-flight"), true
		}
		return ProblemDetail{}, false
	})

	rec, problem := respond(t, r, fmt.Errorf("add: %w", errBusy))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, TypeConflict, problem.Type)
	assert.Equal(t, "/v1/orders", problem.Instance)
	assert.Equal(t, "orders/write-in-flight", problem.Code())
}

func TestChainedResponder_HidesUnmappedCauses(t *testing.T) {
	r := NewChainedResponder("https://vendor.example")
	rec, problem := respond(t, r, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "https://vendor.example"+TypeInternal, problem.Type)
	assert.Equal(t, FallbackDetail, problem.Detail)
}

func TestChainedResponder_PassesProblemsThrough(t *testing.T) {
	r := NewChainedResponder("")
	rec, problem := respond(t, r, ErrUnavailable.WithDetail("Error al cargar los pedidos."))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Error al cargar los pedidos.", problem.Detail)
}

func TestWithExtension_DoesNotAliasTemplate(t *testing.T) {
	first := ErrValidation.WithCode("orders/invalid-format")
	second := first.WithCode("orders/missing-selection")
	assert.Equal(t, "orders/invalid-format", first.Code())
	assert.Equal(t, "orders/missing-selection", second.Code())
	assert.Nil(t, ErrValidation.Extensions)
}

func TestChainedResponder_BadRequestAndInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewChainedResponder("")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/auth/signin", nil)
	r.BadRequest(c, "unexpected EOF")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, TypeValidation, problem.Type)
	assert.Equal(t, "unexpected EOF", problem.Detail)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/orders/export.xlsx", nil)
	r.InternalError(c, FallbackDetail)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, TypeInternal, problem.Type)
	assert.Equal(t, "/v1/orders/export.xlsx", problem.Instance)
}
