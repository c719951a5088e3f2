package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	lifecyclemetrics "lifeline/internal/lifecycle/metrics"
	"lifeline/internal/lifecycle/models"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// MirrorJob is one pending write of a hospital's request mirror.
type MirrorJob struct {
	RequestID   string
	RequesterID string
	Action      models.Action
	Mirror      models.Mirror
}

func mirrorJobFor(req *models.Request, action models.Action) MirrorJob {
	job := MirrorJob{
		RequestID:   req.RequestID,
		RequesterID: req.RequesterID,
		Action:      action,
	}
	if action == models.ActionApprove {
		job.Mirror = req.ApprovedMirror()
	}
	return job
}

// applyMirror writes job onto the hospital user. Non-hospital records are
// never stamped, and a denial only clears a mirror that is currently active;
// both cases return errUnchanged and write nothing.
func applyMirror(ctx context.Context, users UserStore, job MirrorJob, now time.Time) error {
	_, err := users.Execute(ctx, job.RequesterID,
		func(u *models.User) error {
			if u.UserRole != models.RoleHospital {
				return errUnchanged
			}
			if job.Action == models.ActionDeny && !u.IsRequestActive {
				return errUnchanged
			}
			return nil
		},
		func(u *models.User) {
			u.ApplyMirror(job.Mirror, now)
		},
	)
	return err
}

func (s *Service) syncMirror(ctx context.Context, job MirrorJob) {
	err := applyMirror(ctx, s.users, job, requestcontext.Now(ctx))
	switch {
	case err == nil, errors.Is(err, errUnchanged):
		return
	case errors.Is(err, sentinel.ErrNotFound):
		s.logger.WarnContext(ctx, "hospital user missing for resolved request",
			"blood_request_id", job.RequestID,
			"requester_id", job.RequesterID,
			"action", job.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.MirrorMissing.Inc()
		}
	default:
		s.logger.ErrorContext(ctx, "hospital mirror write failed",
			"blood_request_id", job.RequestID,
			"requester_id", job.RequesterID,
			"action", job.Action,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.MirrorFailures.Inc()
		}
		if s.repairer != nil {
			s.repairer.Enqueue(job)
		}
	}
}

// MirrorWorker retries failed mirror writes in the background with
// exponential backoff. It is best-effort: jobs are dropped when the queue is
// full, when retries are exhausted, and on shutdown.
type MirrorWorker struct {
	users      UserStore
	queue      chan MirrorJob
	logger     *slog.Logger
	metrics    *lifecyclemetrics.Metrics
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

type WorkerOption func(*MirrorWorker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *MirrorWorker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *lifecyclemetrics.Metrics) WorkerOption {
	return func(w *MirrorWorker) {
		w.metrics = m
	}
}

// WithBackOff sets the retry policy used for each job.
func WithBackOff(fn func() backoff.BackOff) WorkerOption {
	return func(w *MirrorWorker) {
		w.newBackOff = fn
	}
}

// NewMirrorWorker creates a worker with a queue of queueSize jobs.
func NewMirrorWorker(users UserStore, queueSize int, opts ...WorkerOption) *MirrorWorker {
	if queueSize <= 0 {
		queueSize = 1
	}
	w := &MirrorWorker{
		users:  users,
		queue:  make(chan MirrorJob, queueSize),
		logger: slog.Default(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules job without blocking. It reports false when the queue is
// full and the job was dropped.
func (w *MirrorWorker) Enqueue(job MirrorJob) bool {
	select {
	case w.queue <- job:
		return true
	default:
		w.logger.Error("mirror repair queue full, dropping job",
			"blood_request_id", job.RequestID,
			"requester_id", job.RequesterID,
		)
		w.countDropped()
		return false
	}
}

// Run processes jobs until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-w.queue:
			w.repair(ctx, job)
		}
	}
}

func (w *MirrorWorker) repair(ctx context.Context, job MirrorJob) {
	attempts := 0
	op := func() error {
		attempts++
		err := applyMirror(ctx, w.users, job, w.now())
		switch {
		case err == nil, errors.Is(err, errUnchanged):
			return nil
		case errors.Is(err, sentinel.ErrNotFound):
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	err := backoff.Retry(op, backoff.WithContext(w.newBackOff(), ctx))
	if err != nil {
		w.logger.Error("mirror repair abandoned",
			"blood_request_id", job.RequestID,
			"requester_id", job.RequesterID,
			"attempts", attempts,
			"error", err,
		)
		w.countDropped()
		return
	}
	w.logger.Info("mirror repaired",
		"blood_request_id", job.RequestID,
		"requester_id", job.RequesterID,
		"attempts", attempts,
	)
	if w.metrics != nil {
		w.metrics.MirrorRepaired.Inc()
	}
}

func (w *MirrorWorker) countDropped() {
	if w.metrics != nil {
		w.metrics.MirrorDropped.Inc()
	}
}
