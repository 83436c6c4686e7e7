package allocator

import (
	"fmt"
	"testing"

	"outreach/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func team(n int) []models.Destination {
	dests := make([]models.Destination, n)
	for i := range dests {
		dests[i] = models.Destination{Name: fmt.Sprintf("member-%d", i+1)}
	}
	return dests
}

func sizes(b models.Batch) []int {
	out := make([]int, len(b.Assignments))
	for i, a := range b.Assignments {
		out[i] = a.Len()
	}
	return out
}

func TestIncrementalGrowth(t *testing.T) {
	p := IncrementalPolicy(10, 2)
	progress := models.Progress{}
	want := []int{10, 12, 14, 16, 18}

	for d := 1; d <= 5; d++ {
		batch, next, err := Allocate(10_000, progress, team(4), p)
		require.NoError(t, err)
		assert.Equal(t, d, batch.Day)
		assert.Equal(t, want[d-1], batch.PerDestination)
		for _, a := range batch.Assignments {
			assert.Equal(t, want[d-1], a.Len())
		}
		progress = next
	}
	assert.Equal(t, 5, progress.DayCount)
	assert.Equal(t, 4*(10+12+14+16+18), progress.NextIndex)
}

func TestFixedPoolEvenSplit(t *testing.T) {
	batch, next, err := Allocate(100, models.Progress{}, team(5), PoolPolicy(10))
	require.NoError(t, err)
	assert.Equal(t, 2, batch.PerDestination)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, sizes(batch))
	assert.Equal(t, 10, next.NextIndex)
}

func TestFixedPoolUnevenSplit(t *testing.T) {
	batch, next, err := Allocate(100, models.Progress{}, team(4), PoolPolicy(10))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 1}, sizes(batch))
	assert.Equal(t, 10, next.NextIndex)

	batch, _, err = Allocate(100, models.Progress{}, team(4), PoolPolicy(2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0, 0}, sizes(batch))
}

func TestUnderSupply(t *testing.T) {
	progress := models.Progress{NextIndex: 13, DayCount: 3}
	batch, next, err := Allocate(20, progress, team(5), FixedPolicy(2))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 2, 1, 0}, sizes(batch))
	assert.Equal(t, 7, batch.Assigned())
	assert.Equal(t, 20, next.NextIndex)
	assert.Equal(t, 4, next.DayCount)

	last := batch.Assignments[4]
	assert.True(t, last.Empty())
	assert.Equal(t, "member-5", last.Destination.Name)
	assert.Equal(t, 20, last.Start)
}

func TestExhaustedBacklogStillCountsDay(t *testing.T) {
	progress := models.Progress{NextIndex: 8, DayCount: 6}
	batch, next, err := Allocate(8, progress, team(3), FixedPolicy(5))
	require.NoError(t, err)

	assert.True(t, batch.Empty())
	assert.Len(t, batch.Assignments, 3)
	for _, a := range batch.Assignments {
		assert.True(t, a.Empty())
	}
	assert.Equal(t, 8, next.NextIndex)
	assert.Equal(t, 7, next.DayCount)
}

func TestEveryRowAssignedOnce(t *testing.T) {
	policies := map[string]Policy{
		"fixed":       FixedPolicy(3),
		"incremental": IncrementalPolicy(1, 2),
		"pool":        PoolPolicy(7),
	}
	for name, policy := range policies {
		for _, n := range []int{0, 1, 5, 17, 64, 101} {
			t.Run(fmt.Sprintf("%s/%d", name, n), func(t *testing.T) {
				seen := make([]int, n)
				var order []int
				progress := models.Progress{}

				for run := 0; run < 200 && progress.NextIndex < n; run++ {
					batch, next, err := Allocate(n, progress, team(3), policy)
					require.NoError(t, err)
					require.GreaterOrEqual(t, next.NextIndex, progress.NextIndex)
					require.Equal(t, progress.DayCount+1, next.DayCount)

					for _, a := range batch.Assignments {
						for i := a.Start; i < a.End; i++ {
							seen[i]++
							order = append(order, i)
						}
					}
					progress = next
				}

				require.Equal(t, n, progress.NextIndex)
				for i, c := range seen {
					assert.Equal(t, 1, c, "row %d", i)
				}
				for i, idx := range order {
					assert.Equal(t, i, idx)
				}
			})
		}
	}
}

func TestAssignmentsAreContiguousInDestinationOrder(t *testing.T) {
	batch, _, err := Allocate(50, models.Progress{NextIndex: 5}, team(4), FixedPolicy(3))
	require.NoError(t, err)

	pos := 5
	for i, a := range batch.Assignments {
		assert.Equal(t, fmt.Sprintf("member-%d", i+1), a.Destination.Name)
		assert.Equal(t, pos, a.Start)
		pos = a.End
	}
	assert.Equal(t, 17, pos)
}

func TestAllocateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		progress models.Progress
		dests    []models.Destination
		policy   Policy
		want     error
	}{
		{"negative size", models.Progress{}, team(2), FixedPolicy(-1), ErrInvalidPolicy},
		{"negative increment", models.Progress{}, team(2), IncrementalPolicy(1, -1), ErrInvalidPolicy},
		{"unknown kind", models.Progress{}, team(2), Policy{Kind: Kind(9)}, ErrInvalidPolicy},
		{"no destinations", models.Progress{}, nil, FixedPolicy(1), ErrNoDestinations},
		{"negative cursor", models.Progress{NextIndex: -1}, team(2), FixedPolicy(1), ErrInvalidProgress},
		{"cursor past backlog", models.Progress{NextIndex: 11}, team(2), FixedPolicy(1), ErrInvalidProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, next, err := Allocate(10, tt.progress, tt.dests, tt.policy)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.progress, next)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("incremental")
	require.NoError(t, err)
	assert.Equal(t, Incremental, k)
	assert.Equal(t, "pool", FixedPool.String())

	_, err = ParseKind("weekly")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
