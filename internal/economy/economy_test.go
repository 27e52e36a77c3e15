package economy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_PassesWhenBalanceSufficient(t *testing.T) {
	t.Parallel()
	e := New(1.0)
	assert.NoError(t, e.Check(1.0))
}

func TestCheck_FailsLowBattery(t *testing.T) {
	t.Parallel()
	e := New(0.10)
	err := e.Check(0.50)
	assert.ErrorIs(t, err, ErrLowBattery)
	assert.Equal(t, 0.10, e.Balance())
}

func TestDeduct_NeverGoesNegative(t *testing.T) {
	t.Parallel()
	e := New(0.10)
	err := e.Deduct(0.50, "learner")
	assert.ErrorIs(t, err, ErrLowBattery)
	assert.Equal(t, 0.10, e.Balance())
}

func TestDeduct_ExactBalanceReachesZero(t *testing.T) {
	t.Parallel()
	e := New(0.50)
	require.NoError(t, e.Deduct(0.50, "learner"))
	assert.Equal(t, 0.0, e.Balance())
}

func TestReconcile_SpendPlusBalanceEqualsInitial(t *testing.T) {
	t.Parallel()
	e := New(1.0)
	require.NoError(t, e.Deduct(0.25, "mixed"))
	require.NoError(t, e.Deduct(0.10, "follower-retry"))
	spent, balance, initial := e.Reconcile()
	assert.InDelta(t, initial, spent+balance, 1e-9)
}

func TestDeduct_SerializesConcurrentCalls(t *testing.T) {
	t.Parallel()
	e := New(100.0)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Deduct(1.0, "concurrent")
		}()
	}
	wg.Wait()
	assert.Equal(t, 0.0, e.Balance())
	assert.Len(t, e.SpendLog(), 100)
}

func TestNewPersistent_WritesSpendLogAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "spend_log.json")
	e := NewPersistent(1.0, path)

	require.NoError(t, e.Deduct(0.25, "mixed"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no .tmp file should remain")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var log []SpendEntry
	require.NoError(t, json.Unmarshal(b, &log))
	require.Len(t, log, 1)
	assert.Equal(t, "mixed", log[0].Reason)
}
