package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ecoscope/ecoscope/internal/jobs"
	"github.com/ecoscope/ecoscope/internal/profiles"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultAuditLimit = 500

// OrphanLister lists accounts that have no profile.
type OrphanLister interface {
	ListOrphanAccounts(ctx context.Context, limit int) ([]profiles.OrphanAccount, error)
}

// OrphanAuditJob logs accounts left without a profile. It never repairs them.
type OrphanAuditJob struct {
	Store   OrphanLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOrphanAuditJob wires dependencies for the audit handler.
func NewOrphanAuditJob(store OrphanLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrphanAuditJob {
	return &OrphanAuditJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes orphan audit tasks.
func (j *OrphanAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("orphan audit: handler not configured")
	}
	var payload OrphanAuditPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultAuditLimit
	}

	tracker := j.metrics().Track(TaskProfileOrphanAudit)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}
	start := j.now()

	orphans, err := j.Store.ListOrphanAccounts(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("list orphan accounts", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetOrphans(len(orphans))

	triggerFound := false
	for _, o := range orphans {
		logger.Warn("account has no profile",
			slog.String("account_id", o.ID),
			slog.String("email", o.Email),
			slog.Time("created_at", o.CreatedAt))
		if payload.Email != "" && strings.EqualFold(o.Email, payload.Email) {
			triggerFound = true
		}
	}
	if payload.Email != "" && !triggerFound {
		logger.Info("triggering account not among orphans", slog.String("email", payload.Email))
	}

	logger.Info("completed orphan audit", slog.Int("orphans", len(orphans)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *OrphanAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProfileOrphanAudit))
	}
	return slog.Default().With(slog.String("job", TaskProfileOrphanAudit))
}

func (j *OrphanAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OrphanAuditJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
