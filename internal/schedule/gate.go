package schedule

import (
	"fmt"
	"strings"
	"time"

	"outreach/internal/models"
)

// TaskNone means no run window matched. It is a normal outcome.
const TaskNone = ""

const secondsPerDay = 24 * 60 * 60

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var c Clock
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &c.Hour, &c.Minute); err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return Clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	return c, nil
}

// ParseTask validates a task name given on the command line or environment.
func ParseTask(s string) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case models.TaskAssign, models.TaskNotify, models.TaskRemind:
		return t, nil
	default:
		return TaskNone, fmt.Errorf("unknown task %q", s)
	}
}

// Gate picks the task whose run time is within Tolerance of now. A negative
// Tolerance falls back to the default window; zero matches only the target minute.
type Gate struct {
	Assign    Clock
	Notify    Clock
	Remind    Clock
	Tolerance time.Duration
	Location  *time.Location
}

// Select returns the first matching task in the order assign, notify, remind,
// or TaskNone.
func (g Gate) Select(now time.Time) string {
	if g.Location != nil {
		now = now.In(g.Location)
	}
	tolerance := g.Tolerance
	if tolerance < 0 {
		tolerance = models.DefaultToleranceMinutes * time.Minute
	}
	if tolerance == 0 {
		// zero tolerance matches the whole target minute
		now = time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())
	}

	candidates := []struct {
		task string
		at   Clock
	}{
		{models.TaskAssign, g.Assign},
		{models.TaskNotify, g.Notify},
		{models.TaskRemind, g.Remind},
	}
	for _, c := range candidates {
		if Distance(now, c.at) <= tolerance {
			return c.task
		}
	}
	return TaskNone
}

// Distance is the shortest distance on a 24h clock between now and the target,
// so 23:50 and 00:10 are 20 minutes apart.
func Distance(now time.Time, target Clock) time.Duration {
	cur := now.Hour()*3600 + now.Minute()*60 + now.Second()
	diff := cur - target.minutes()*60
	if diff < 0 {
		diff = -diff
	}
	diff %= secondsPerDay
	if diff > secondsPerDay-diff {
		diff = secondsPerDay - diff
	}
	return time.Duration(diff) * time.Second
}
