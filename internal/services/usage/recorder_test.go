package usage

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
)

type mockUsageRepo struct {
	insertFunc func(ctx context.Context, usage *models.ModelUsage) error
	inserted   []*models.ModelUsage
}

func (m *mockUsageRepo) Insert(ctx context.Context, usage *models.ModelUsage) error {
	m.inserted = append(m.inserted, usage)
	if m.insertFunc != nil {
		return m.insertFunc(ctx, usage)
	}
	return nil
}

func TestRecordFillsDerivedFields(t *testing.T) {
	repo := &mockUsageRepo{}
	recorder := NewRecorder(repo, zap.NewNop())

	recorder.Record(context.Background(), &models.ModelUsage{
		ProfileID:    42,
		Stage:        "classification",
		InputTokens:  100,
		OutputTokens: 50,
	})

	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(repo.inserted))
	}
	got := repo.inserted[0]
	if got.TotalTokens != 150 {
		t.Errorf("TotalTokens should be filled from input+output, got %d", got.TotalTokens)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled")
	}
}

func TestRecordSwallowsInsertFailure(t *testing.T) {
	repo := &mockUsageRepo{
		insertFunc: func(ctx context.Context, usage *models.ModelUsage) error {
			return errors.New("db down")
		},
	}
	recorder := NewRecorder(repo, zap.NewNop())

	// Must not panic or propagate anything
	recorder.Record(context.Background(), &models.ModelUsage{Stage: "extraction"})
	recorder.Record(context.Background(), nil)
}
