package schedule

import (
	"testing"
	"time"

	"outreach/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 8, 20, h, m, 0, 0, time.UTC)
}

func defaultGate() Gate {
	return Gate{
		Assign:    Clock{9, 0},
		Notify:    Clock{19, 0},
		Remind:    Clock{21, 0},
		Tolerance: 30 * time.Minute,
	}
}

func TestGateSelect(t *testing.T) {
	g := defaultGate()
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"assign inside window", at(9, 25), models.TaskAssign},
		{"assign early edge", at(8, 30), models.TaskAssign},
		{"just outside assign", at(9, 35), TaskNone},
		{"notify before target", at(18, 31), models.TaskNotify},
		{"remind after target", at(21, 30), models.TaskRemind},
		{"idle afternoon", at(14, 0), TaskNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Select(tt.now))
		})
	}
}

func TestGateOverlapPrefersEarlierTask(t *testing.T) {
	g := Gate{
		Assign:    Clock{19, 0},
		Notify:    Clock{19, 20},
		Remind:    Clock{19, 40},
		Tolerance: 30 * time.Minute,
	}
	assert.Equal(t, models.TaskAssign, g.Select(at(19, 15)))
	assert.Equal(t, models.TaskNotify, g.Select(at(19, 35)))
	assert.Equal(t, models.TaskRemind, g.Select(at(20, 5)))
}

func TestGateAcrossMidnight(t *testing.T) {
	g := Gate{
		Assign:    Clock{0, 10},
		Notify:    Clock{12, 0},
		Remind:    Clock{23, 55},
		Tolerance: 30 * time.Minute,
	}
	assert.Equal(t, models.TaskAssign, g.Select(at(23, 50)))
	assert.Equal(t, models.TaskRemind, g.Select(at(23, 30)))
	assert.Equal(t, 20*time.Minute, Distance(at(23, 50), Clock{0, 10}))
	assert.Equal(t, 20*time.Minute, Distance(at(0, 10), Clock{23, 50}))
}

func TestGateSecondsCount(t *testing.T) {
	g := defaultGate()
	assert.Equal(t, models.TaskAssign, g.Select(time.Date(2025, 8, 20, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, TaskNone, g.Select(time.Date(2025, 8, 20, 9, 30, 1, 0, time.UTC)))
}

func TestGateLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	g := defaultGate()
	g.Location = loc

	// 03:40 UTC is 09:10 IST.
	assert.Equal(t, models.TaskAssign, g.Select(time.Date(2025, 8, 20, 3, 40, 0, 0, time.UTC)))
}

func TestGateDefaultTolerance(t *testing.T) {
	g := defaultGate()
	g.Tolerance = -1
	assert.Equal(t, models.TaskNotify, g.Select(at(19, 29)))
	assert.Equal(t, TaskNone, g.Select(at(19, 31)))
}

func TestGateZeroToleranceMatchesExactMinute(t *testing.T) {
	g := defaultGate()
	g.Tolerance = 0
	assert.Equal(t, models.TaskAssign, g.Select(at(9, 0)))
	assert.Equal(t, models.TaskAssign, g.Select(time.Date(2025, 8, 20, 9, 0, 59, 0, time.UTC)))
	assert.Equal(t, TaskNone, g.Select(at(9, 1)))
	assert.Equal(t, TaskNone, g.Select(at(8, 59)))
	assert.Equal(t, models.TaskRemind, g.Select(at(21, 0)))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock(" 07:05 ")
	require.NoError(t, err)
	assert.Equal(t, Clock{7, 5}, c)
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"", "24:00", "9:60", "nine"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask("Remind")
	require.NoError(t, err)
	assert.Equal(t, models.TaskRemind, task)

	_, err = ParseTask("cleanup")
	assert.Error(t, err)
}
