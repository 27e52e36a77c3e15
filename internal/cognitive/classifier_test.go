package cognitive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/economy"
	"llmos/internal/trace"
)

type scoreBackend struct {
	output  string
	costUSD float64
}

func (b *scoreBackend) OneShot(context.Context, Request) (Result, error) {
	return Result{Success: true, Output: b.output, CostUSD: b.costUSD}, nil
}

func (b *scoreBackend) Stream(context.Context, Request, func(StreamEvent)) error {
	return nil
}

func TestLLMClassifier_ParsesScoreAndDeductsCost(t *testing.T) {
	t.Parallel()
	econ := economy.New(1.0)
	c := NewLLMClassifier(&scoreBackend{output: "0.83", costUSD: 0.01}, econ)

	score, err := c.Classify(context.Background(), "sort a list", trace.ExecutionTrace{GoalText: "sort an array"})
	require.NoError(t, err)
	assert.InDelta(t, 0.83, score, 0.001)
	assert.InDelta(t, 0.99, econ.Balance(), 0.001)
}

func TestLLMClassifier_ClampsOutOfRangeScores(t *testing.T) {
	t.Parallel()
	c := NewLLMClassifier(&scoreBackend{output: "1.5"}, nil)
	score, err := c.Classify(context.Background(), "a", trace.ExecutionTrace{GoalText: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestLLMClassifier_RejectsNonNumericResponse(t *testing.T) {
	t.Parallel()
	c := NewLLMClassifier(&scoreBackend{output: "very similar"}, nil)
	_, err := c.Classify(context.Background(), "a", trace.ExecutionTrace{GoalText: "b"})
	assert.Error(t, err)
}
