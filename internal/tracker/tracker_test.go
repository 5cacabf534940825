package tracker

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUntilPassed(t *testing.T) {
	tr := New([]string{"A", "B"})
	require.NoError(t, tr.Start())
	assert.Equal(t, InProgress, tr.State())

	assert.True(t, tr.Observe("A"))
	assert.Equal(t, []string{"B"}, tr.Remaining())
	assert.Equal(t, InProgress, tr.State())

	assert.True(t, tr.Observe("B"))
	assert.Equal(t, Passed, tr.State())
	assert.Empty(t, tr.Remaining())
}

func TestAbortReportsMissingKeys(t *testing.T) {
	tr := New([]string{"C", "A", "B"})
	require.NoError(t, tr.Start())
	tr.Observe("A")

	failed, ok := tr.Abort()
	require.True(t, ok)
	assert.Equal(t, []string{"B", "C"}, failed)
	assert.Equal(t, Aborted, tr.State())
	assert.Equal(t, []string{"B", "C"}, tr.FailedKeys())

	_, ok = tr.Abort()
	assert.False(t, ok)
}

func TestObserveIsIdempotent(t *testing.T) {
	once := New([]string{"A", "B", "C"})
	twice := New([]string{"A", "B", "C"})
	require.NoError(t, once.Start())
	require.NoError(t, twice.Start())

	once.Observe("B")
	assert.True(t, twice.Observe("B"))
	assert.False(t, twice.Observe("B"))
	assert.Equal(t, once.Remaining(), twice.Remaining())
}

func TestObserveIgnoresKeysOutsideLayout(t *testing.T) {
	tr := New([]string{"A"})
	require.NoError(t, tr.Start())
	assert.False(t, tr.Observe("Z"))
	assert.Equal(t, 1, tr.RemainingCount())
}

func TestCompletionSetNeverGrows(t *testing.T) {
	layout := []string{"A", "B", "C", "D", "E", "F"}
	tr := New(layout)
	require.NoError(t, tr.Start())

	rng := rand.New(rand.NewSource(7))
	prev := tr.RemainingCount()
	for i := 0; i < 100; i++ {
		tr.Observe(layout[rng.Intn(len(layout))])
		cur := tr.RemainingCount()
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestObservingWholeLayoutPasses(t *testing.T) {
	layout := []string{"ESC", "F1", "NUM ENTER", "LSHIFT", "한/영"}
	tr := New(layout)
	require.NoError(t, tr.Start())
	for _, sym := range layout {
		tr.Observe(sym)
	}
	assert.Equal(t, Passed, tr.State())
	assert.Zero(t, tr.RemainingCount())

	_, ok := tr.Abort()
	assert.False(t, ok, "passed session cannot be aborted")
	assert.False(t, tr.Observe("ESC"))
}

func TestStartRequiresFreshTracker(t *testing.T) {
	tr := New([]string{"A"})
	require.NoError(t, tr.Start())
	assert.ErrorIs(t, tr.Start(), ErrAlreadyStarted)
}

func TestNotStartedIgnoresObserve(t *testing.T) {
	tr := New([]string{"A", "A", "B"})
	assert.Equal(t, 2, tr.Total())
	assert.False(t, tr.Observe("A"))
	assert.True(t, tr.Pending("A"))
	assert.Equal(t, NotStarted, tr.State())
}

func TestEmptyLayoutPassesOnStart(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Start())
	assert.Equal(t, Passed, tr.State())
}
