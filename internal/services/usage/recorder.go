package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/database"
	"github.com/sproutlog/sproutlog/internal/models"
)

// Recorder persists model usage telemetry. Recording is strictly
// best-effort: a failed insert is logged and dropped so telemetry can
// never fail a pipeline run.
type Recorder struct {
	repo   database.UsageRepositoryInterface
	logger *zap.Logger
}

// NewRecorder creates a usage recorder
func NewRecorder(repo database.UsageRepositoryInterface, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Record persists one usage row. Missing derived fields are filled in
// before the insert.
func (r *Recorder) Record(ctx context.Context, usage *models.ModelUsage) {
	if usage == nil {
		return
	}

	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now().UTC()
	}

	if err := r.repo.Insert(ctx, usage); err != nil {
		r.logger.Warn("usage_record_failed",
			zap.String("stage", usage.Stage),
			zap.String("model", usage.Model),
			zap.Int64("profile_id", usage.ProfileID),
			zap.Error(err),
		)
		return
	}

	if usage.CacheUsed {
		r.logger.Debug("usage_recorded",
			zap.String("stage", usage.Stage),
			zap.String("model", usage.Model),
			zap.Int("total_tokens", usage.TotalTokens),
			zap.Float64("cache_savings_percent", usage.SavingsPercent()),
		)
	}
}
