package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
	"github.com/sproutlog/sproutlog/internal/queue"
	"github.com/sproutlog/sproutlog/internal/services/forwarder"
)

type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

type mockForwarder struct {
	forwardFunc func(ctx context.Context, payload forwarder.ForwardPayload) error
	calls       []forwarder.ForwardPayload
}

func (m *mockForwarder) Forward(ctx context.Context, payload forwarder.ForwardPayload) error {
	m.calls = append(m.calls, payload)
	if m.forwardFunc != nil {
		return m.forwardFunc(ctx, payload)
	}
	return nil
}

type mockMemoryAdder struct {
	addFunc func(ctx context.Context, userID, profileID int64, text string, metadata json.RawMessage) (string, error)
	calls   int
}

func (m *mockMemoryAdder) Add(ctx context.Context, userID, profileID int64, text string, metadata json.RawMessage) (string, error) {
	m.calls++
	if m.addFunc != nil {
		return m.addFunc(ctx, userID, profileID, text, metadata)
	}
	return "stored", nil
}

func forwardJob(t *testing.T, profileID int64) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(forwarder.ForwardPayload{
		UserMessage: "drank 120ml",
		AIMessage:   "Logged!",
		Events: []models.ExtractedEvent{
			{Category: models.EventCategoryJournal, Type: models.EventTypeFeeding, Summary: "120ml"},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return queue.NewJob(queue.JobTypeForwardEvents, profileID, 3, payload)
}

func TestProcessJobForwardEvents(t *testing.T) {
	fw := &mockForwarder{}
	worker := NewSideEffectWorker(fw, &mockMemoryAdder{}, nil, zap.NewNop())

	msg := &mockMessage{job: forwardJob(t, 7)}
	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("successful job should be acked")
	}
	if len(fw.calls) != 1 {
		t.Fatalf("expected 1 forward call, got %d", len(fw.calls))
	}
	if fw.calls[0].ProfileID != 7 {
		t.Errorf("job identity should override payload identity, got %d", fw.calls[0].ProfileID)
	}
}

func TestProcessJobMemoryAdd(t *testing.T) {
	var gotUser, gotProfile int64
	var gotText string
	var gotMetadata json.RawMessage
	mem := &mockMemoryAdder{
		addFunc: func(ctx context.Context, userID, profileID int64, text string, metadata json.RawMessage) (string, error) {
			gotUser, gotProfile, gotText, gotMetadata = userID, profileID, text, metadata
			return "stored", nil
		},
	}
	worker := NewSideEffectWorker(&mockForwarder{}, mem, nil, zap.NewNop())

	payload, _ := json.Marshal(memoryAddPayload{
		Text:     "Parent: hi\nAssistant: hello",
		Metadata: json.RawMessage(`{"intent":"CONVERSATION"}`),
	})
	msg := &mockMessage{job: queue.NewJob(queue.JobTypeMemoryAdd, 7, 3, payload)}

	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("successful job should be acked")
	}
	if gotUser != 3 || gotProfile != 7 {
		t.Errorf("identity should come from the job, got user=%d profile=%d", gotUser, gotProfile)
	}
	if gotText == "" {
		t.Error("memory text should be passed through")
	}
	if string(gotMetadata) != `{"intent":"CONVERSATION"}` {
		t.Errorf("metadata should be passed through opaquely, got %s", gotMetadata)
	}
}

func TestProcessJobRetriesThenDeadLetters(t *testing.T) {
	fw := &mockForwarder{
		forwardFunc: func(ctx context.Context, payload forwarder.ForwardPayload) error {
			return errors.New("event service down")
		},
	}
	worker := NewSideEffectWorker(fw, &mockMemoryAdder{}, nil, zap.NewNop())

	// Still under the retry budget: nack with requeue
	job := forwardJob(t, 7)
	msg := &mockMessage{job: job}
	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Error("expected error while retries remain")
	}
	if !msg.nacked || !msg.requeue {
		t.Error("retryable failure should nack with requeue")
	}

	// Budget exhausted: nack without requeue (DLQ)
	job = forwardJob(t, 7)
	job.RetryCount = job.MaxRetries
	msg = &mockMessage{job: job}
	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Error("expected error at max retries")
	}
	if !msg.nacked || msg.requeue {
		t.Error("exhausted job should nack without requeue")
	}
}

func TestProcessJobRateLimitReenqueuesWithDelay(t *testing.T) {
	fw := &mockForwarder{
		forwardFunc: func(ctx context.Context, payload forwarder.ForwardPayload) error {
			return errors.New("429 rate limit exceeded")
		},
	}
	enqueued := make([]*queue.Job, 0, 1)
	jobQueue := &mockJobQueue{
		enqueueFunc: func(ctx context.Context, job *queue.Job) error {
			enqueued = append(enqueued, job)
			return nil
		},
	}
	worker := NewSideEffectWorker(fw, &mockMemoryAdder{}, jobQueue, zap.NewNop())

	msg := &mockMessage{job: forwardJob(t, 7)}
	if err := worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("delayed retry should be handled, got %v", err)
	}
	if !msg.acked {
		t.Error("rate-limited job should be acked before re-enqueue")
	}
	if len(enqueued) != 1 {
		t.Fatalf("expected 1 re-enqueued job, got %d", len(enqueued))
	}
	if enqueued[0].NotBefore == nil {
		t.Error("re-enqueued job should carry NotBefore")
	}
	if enqueued[0].RetryCount != 1 {
		t.Errorf("re-enqueued job should increment retries, got %d", enqueued[0].RetryCount)
	}
}

func TestProcessJobUnknownType(t *testing.T) {
	worker := NewSideEffectWorker(&mockForwarder{}, &mockMemoryAdder{}, nil, zap.NewNop())

	msg := &mockMessage{job: queue.NewJob("mystery", 7, 3, nil)}
	if err := worker.ProcessJob(context.Background(), msg); err == nil {
		t.Error("expected error for unknown job type")
	}
	if !msg.nacked || msg.requeue {
		t.Error("unknown job type should go to the DLQ")
	}
}

type mockJobQueue struct {
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }
