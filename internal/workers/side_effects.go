package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/queue"
	"github.com/sproutlog/sproutlog/internal/services/ai"
	"github.com/sproutlog/sproutlog/internal/services/forwarder"
)

// EventForwarder delivers extracted events downstream
type EventForwarder interface {
	Forward(ctx context.Context, payload forwarder.ForwardPayload) error
}

// MemoryAdder stores conversation memories for a user
type MemoryAdder interface {
	Add(ctx context.Context, userID, profileID int64, text string, metadata json.RawMessage) (string, error)
}

// SideEffectWorker processes the side-effect jobs the pipeline defers:
// event forwarding and memory storage. Both are retried with backoff and
// dead-lettered after exhaustion.
type SideEffectWorker struct {
	forwarder EventForwarder
	memory    MemoryAdder
	jobQueue  queue.JobQueue // For re-enqueueing jobs with delays
	logger    *zap.Logger
}

// NewSideEffectWorker creates a side-effect worker
func NewSideEffectWorker(fw EventForwarder, memory MemoryAdder, jobQueue queue.JobQueue, logger *zap.Logger) *SideEffectWorker {
	return &SideEffectWorker{
		forwarder: fw,
		memory:    memory,
		jobQueue:  jobQueue,
		logger:    logger,
	}
}

// memoryAddPayload mirrors the pipeline's memory_add job body
type memoryAddPayload struct {
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ProcessForwardEventsJob delivers one forward_events job
func (w *SideEffectWorker) ProcessForwardEventsJob(ctx context.Context, job *queue.Job) error {
	var payload forwarder.ForwardPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal forward payload: %w", err)
	}

	// Identity on the job wins over whatever the payload carries
	payload.ProfileID = job.ProfileID

	if err := w.forwarder.Forward(ctx, payload); err != nil {
		return fmt.Errorf("failed to forward events: %w", err)
	}

	w.logger.Info("forward_events_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int64("profile_id", job.ProfileID),
		zap.Int("event_count", len(payload.Events)),
	)
	return nil
}

// ProcessMemoryAddJob stores one memory_add job
func (w *SideEffectWorker) ProcessMemoryAddJob(ctx context.Context, job *queue.Job) error {
	var payload memoryAddPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal memory payload: %w", err)
	}
	if payload.Text == "" {
		return fmt.Errorf("memory_add job has empty text")
	}

	// Identity on the job wins; memories are keyed by user
	ack, err := w.memory.Add(ctx, job.UserID, job.ProfileID, payload.Text, payload.Metadata)
	if err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}

	w.logger.Info("memory_add_completed",
		zap.String("job_id", job.ID.String()),
		zap.Int64("user_id", job.UserID),
		zap.Int64("profile_id", job.ProfileID),
		zap.String("ack", ack),
	)
	return nil
}

// ProcessJob processes a job based on its type
func (w *SideEffectWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	// Respect NotBefore: ack and let the delayed re-enqueue path handle it
	if !job.ShouldProcess() {
		w.logger.Debug("job_not_ready",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_before", job.NotBefore),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Warn("job_ack_failed", zap.Error(ackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeForwardEvents:
		if err := w.ProcessForwardEventsJob(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
	case queue.JobTypeMemoryAdd:
		if err := w.ProcessMemoryAddJob(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
	default:
		// Unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// handleJobError retries failed jobs. Rate-limit and quota errors are
// re-enqueued with a delay through the delayed exchange; other errors
// retry immediately until MaxRetries, then dead-letter.
func (w *SideEffectWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if (ai.IsQuotaError(err) || ai.IsRateLimitError(err)) && w.jobQueue != nil {
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		notBefore := time.Now().Add(retryDelay)

		delayedJob := &queue.Job{
			ID:         job.ID,
			Type:       job.Type,
			ProfileID:  job.ProfileID,
			UserID:     job.UserID,
			Payload:    job.Payload,
			NotBefore:  &notBefore,
			NotAfter:   job.NotAfter,
			CreatedAt:  job.CreatedAt,
			RetryCount: job.RetryCount + 1,
			MaxRetries: job.MaxRetries,
		}

		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Warn("job_ack_failed", zap.Error(ackErr))
		}

		if enqueueErr := w.jobQueue.Enqueue(ctx, delayedJob); enqueueErr != nil {
			w.logger.Error("job_delayed_reenqueue_failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(enqueueErr),
			)
			return fmt.Errorf("failed to re-enqueue: %w", enqueueErr)
		}

		w.logger.Info("job_delayed_retry",
			zap.String("job_id", job.ID.String()),
			zap.Time("not_before", notBefore),
			zap.Duration("delay", retryDelay),
		)
		return nil
	}

	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("job_retry",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	w.logger.Error("job_dead_lettered",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Warn("job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
