package trace

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/objectstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func sampleTrace(goal string) ExecutionTrace {
	return ExecutionTrace{
		GoalSignature:    NewSignature(goal),
		GoalText:         goal,
		SuccessRating:    1.0,
		UsageCount:       1,
		CreatedAt:        time.Now().UTC(),
		EstimatedCostUSD: 0.5,
		Mode:             ModeLearner,
		ToolsUsed:        []string{"write_file"},
		OutputSummary:    "did the thing",
	}
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	tr := sampleTrace("Create a Python function to calculate factorial recursively")
	require.NoError(t, s.Save(ctx, tr))

	got, err := s.Load(ctx, tr.GoalSignature)
	require.NoError(t, err)
	assert.Equal(t, tr.GoalText, got.GoalText)
	assert.Equal(t, tr.UsageCount, got.UsageCount)
}

func TestLoad_MissingReturnsNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.Load(context.Background(), NewSignature("nothing stored"))
	assert.Error(t, err)
}

func TestAll_SkipsCorruptFilesWithoutFailing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	good := sampleTrace("a clean goal")
	require.NoError(t, s.Save(ctx, good))

	// Inject a corrupt trace file directly through the backend.
	_, err := s.backend.Put(ctx, "deadbeefdeadbeef.json", strings.NewReader("{not valid json"), objectstore.PutOptions{})
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, good.GoalSignature, all[0].GoalSignature)
}

func TestUpdateUsage_IncrementsAndAppliesEMA(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	tr := sampleTrace("repeat me")
	tr.SuccessRating = 0.5
	require.NoError(t, s.Save(ctx, tr))

	updated, err := s.UpdateUsage(ctx, tr.GoalSignature, true)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.UsageCount)
	assert.InDelta(t, 0.6, updated.SuccessRating, 1e-9) // 0.2*1 + 0.8*0.5
	assert.NotNil(t, updated.LastUsedAt)
}

func TestUpdateUsage_ReinforcesOnEmptyToolsReplay(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	tr := sampleTrace("no-op follower")
	tr.ToolsUsed = nil
	require.NoError(t, s.Save(ctx, tr))

	updated, err := s.UpdateUsage(ctx, tr.GoalSignature, true)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.UsageCount)
}

func TestNewSignature_NormalizesWhitespaceAndCase(t *testing.T) {
	t.Parallel()
	a := NewSignature("  Create a   Python File  ")
	b := NewSignature("create a python file")
	assert.Equal(t, a, b)
}

func TestNewSignature_DoesNotMatchNearDuplicates(t *testing.T) {
	t.Parallel()
	a := NewSignature("create a python file")
	b := NewSignature("create a python file named helpers.py")
	assert.NotEqual(t, a, b)
}
