package errors

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for Problem Details responses.
const ContentTypeProblemJSON = "application/problem+json"

// ErrorMapper maps domain or application errors to a ProblemDetail.
type ErrorMapper func(err error) (ProblemDetail, bool)

// ChainedResponder writes problem responses, trying each mapper in order.
type ChainedResponder struct {
	// BaseURI is prepended to relative problem type URIs.
	BaseURI string
	logger  *slog.Logger
	mappers []ErrorMapper
}

// NewChainedResponder creates a responder with the given error mappers.
func NewChainedResponder(baseURI string, mappers ...ErrorMapper) *ChainedResponder {
	return &ChainedResponder{BaseURI: baseURI, mappers: mappers}
}

// WithLogger sets the logger used for errors no mapper recognizes.
func (r *ChainedResponder) WithLogger(logger *slog.Logger) *ChainedResponder {
	r.logger = logger
	return r
}

// Respond sends a ProblemDetail response with the problem content type.
func (r *ChainedResponder) Respond(c *gin.Context, problem ProblemDetail) {
	if r.BaseURI != "" && len(problem.Type) > 0 && problem.Type[0] == '/' {
		problem.Type = r.BaseURI + problem.Type
	}
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.JSON(problem.Status, problem)
}

// BadRequest sends a 400 problem response.
func (r *ChainedResponder) BadRequest(c *gin.Context, detail string) {
	r.Respond(c, ErrValidation.WithDetail(detail))
}

// InternalError sends a 500 problem response.
func (r *ChainedResponder) InternalError(c *gin.Context, detail string) {
	r.Respond(c, ErrInternal.WithDetail(detail))
}

// RespondError maps err and responds. Unmapped errors become a 500 whose
// detail is the generic message; the cause is logged, not returned.
func (r *ChainedResponder) RespondError(c *gin.Context, err error) {
	for _, mapper := range r.mappers {
		if problem, ok := mapper(err); ok {
			r.Respond(c, problem)
			return
		}
	}
	var problem ProblemDetail
	if errors.As(err, &problem) {
		r.Respond(c, problem)
		return
	}
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(c.Request.Context(), "unmapped API error",
		slog.String("http.path", c.Request.URL.Path), slog.String("error", err.Error()))
	r.Respond(c, ErrInternal.WithDetail(FallbackDetail))
}
