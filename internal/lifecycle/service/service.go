package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	lifecyclemetrics "lifeline/internal/lifecycle/metrics"
	"lifeline/internal/lifecycle/models"
	"lifeline/internal/notify"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// UserStore persists users.
//
// Execute loads the user, runs validate and then mutate, and writes the
// result while holding the row (mutex, FOR UPDATE or a version check). When
// validate fails nothing is written and its error is returned unchanged.
type UserStore interface {
	CreateIfPhoneAvailable(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	ListByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error)
	ListDonors(ctx context.Context, filter models.DonorFilter) ([]*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	Execute(ctx context.Context, userID string, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
}

// RequestStore persists blood requests. List returns newest first and
// filters by exact pin code when pinCode is non-empty. Execute follows the
// UserStore contract.
type RequestStore interface {
	CreateIfNoPending(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, requestID string) (*models.Request, error)
	List(ctx context.Context, pinCode string) ([]*models.Request, error)
	Execute(ctx context.Context, requestID string, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error)
}

// errUnchanged aborts an Execute whose target state is already stored.
var errUnchanged = errors.New("already in target state")

// Publisher delivers lifecycle events to the notification channel.
type Publisher interface {
	Publish(ctx context.Context, event notify.Event) error
}

// MirrorRepairer accepts mirror writes that failed after a request resolution.
// Enqueue must not block; it reports false when the job was dropped.
type MirrorRepairer interface {
	Enqueue(job MirrorJob) bool
}

// Service implements the donor and hospital lifecycle.
type Service struct {
	users     UserStore
	requests  RequestStore
	publisher Publisher
	repairer  MirrorRepairer
	logger    *slog.Logger
	metrics   *lifecyclemetrics.Metrics
	tracer    trace.Tracer
	newID     func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *lifecyclemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithMirrorRepairer(r MirrorRepairer) Option {
	return func(s *Service) {
		s.repairer = r
	}
}

// WithIDGenerator overrides UUID generation for user and request ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// New constructs a Service. Without WithPublisher events are discarded.
func New(users UserStore, requests RequestStore, opts ...Option) *Service {
	s := &Service{
		users:     users,
		requests:  requests,
		publisher: notify.Discard,
		logger:    slog.Default(),
		tracer:    otel.Tracer("lifeline/lifecycle"),
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// start opens a span and returns a finisher that records latency and the
// operation outcome.
func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	began := time.Now()
	ctx, span := s.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(*errp)))
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOp(op, began)
		}
	}
}

// publish emits after the write has committed. Failures are logged and
// counted but never surface to the caller.
func (s *Service) publish(ctx context.Context, name, key string, data any) {
	event := notify.Event{
		Name:       name,
		Key:        key,
		Data:       data,
		OccurredAt: requestcontext.Now(ctx),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event", name,
			"key", key,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(name).Inc()
		}
	}
}

// translateStoreErr maps sentinel store errors to domain errors.
func translateStoreErr(err error, notFoundMsg, internalMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, internalMsg)
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}
