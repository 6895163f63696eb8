package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

const tracerName = "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/observability/service"

// Service decorates the identity port with tracing, logging, and metrics.
// Emails and tokens are never recorded.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*ports.Session, error) {
	return s.signIn(ctx, "password", func(ctx context.Context) (*ports.Session, error) {
		return s.inner.SignIn(ctx, email, password)
	})
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*ports.Session, error) {
	return s.signIn(ctx, "signup", func(ctx context.Context) (*ports.Session, error) {
		return s.inner.SignUp(ctx, email, password)
	})
}

func (s *Service) SignInWithIDToken(ctx context.Context, idToken string) (*ports.Session, error) {
	return s.signIn(ctx, "id_token", func(ctx context.Context) (*ports.Session, error) {
		return s.inner.SignInWithIDToken(ctx, idToken)
	})
}

func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := s.tracer.Start(ctx, "Service.SendPasswordReset")
	defer span.End()
	if err := s.inner.SendPasswordReset(ctx, email); err != nil {
		return s.handleError(ctx, span, err, "failed to send password reset")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "password reset requested")
	return nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "Service.SignOut")
	defer span.End()
	if err := s.inner.SignOut(ctx, token); err != nil {
		return s.handleError(ctx, span, err, "failed to sign out")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "signed out")
	return nil
}

// Authenticate runs on every request, so it only traces.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Authenticate")
	defer span.End()
	principal, err := s.inner.Authenticate(ctx, token)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return principal, err
	}
	span.SetAttributes(attribute.String("user.id", principal.UID))
	return principal, nil
}

func (s *Service) Observe(fn func(*domain.Principal)) func() {
	return s.inner.Observe(fn)
}

func (s *Service) signIn(ctx context.Context, method string, call func(context.Context) (*ports.Session, error)) (*ports.Session, error) {
	ctx, span := s.tracer.Start(ctx, "Service.SignIn", trace.WithAttributes(attribute.String("auth.method", method)))
	defer span.End()

	session, err := call(ctx)
	if err != nil {
		code := ""
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			code = authErr.Code
		}
		span.SetAttributes(attribute.String("auth.code", code))
		s.metrics.recordFailure(ctx, method, code)
		return nil, s.handleError(ctx, span, err, "sign in failed", slog.String("auth.method", method), slog.String("auth.code", code))
	}
	span.SetAttributes(attribute.String("user.id", session.Principal.UID))
	s.metrics.recordSignIn(ctx, method)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "signed in",
		slog.String("auth.method", method), slog.String("user.id", session.Principal.UID))
	return session, nil
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
	return err
}

type serviceMetrics struct {
	signIns        metric.Int64Counter
	signInFailures metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	signIns, _ := m.Int64Counter("identity.service.sign_ins", metric.WithDescription("Number of successful sign-ins"))
	failures, _ := m.Int64Counter("identity.service.sign_in_failures", metric.WithDescription("Number of rejected sign-ins"))
	return serviceMetrics{signIns: signIns, signInFailures: failures}
}

func (m serviceMetrics) recordSignIn(ctx context.Context, method string) {
	if m.signIns == nil {
		return
	}
	m.signIns.Add(ctx, 1, metric.WithAttributes(attribute.String("auth.method", method)))
}

func (m serviceMetrics) recordFailure(ctx context.Context, method, code string) {
	if m.signInFailures == nil {
		return
	}
	m.signInFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.method", method), attribute.String("auth.code", code)))
}

var _ ports.Service = (*Service)(nil)
