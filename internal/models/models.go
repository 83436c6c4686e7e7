package models

import "time"

// Lead is one backlog row. Cells are kept as read from the store; only the
// position of the row in the backlog is meaningful to the allocator.
type Lead struct {
	Index int
	Cells []interface{}
}

// Sheet is the backlog as read from the leads range: header plus data rows
// in sheet order.
type Sheet struct {
	Header []interface{}
	Rows   []Lead
}

// Slice returns the rows in the half-open range [start, end), clamped to the sheet.
func (s Sheet) Slice(start, end int) []Lead {
	if start < 0 {
		start = 0
	}
	if end > len(s.Rows) {
		end = len(s.Rows)
	}
	if start >= end {
		return nil
	}
	return s.Rows[start:end]
}

// Progress is the persisted cursor over the backlog.
type Progress struct {
	NextIndex int
	DayCount  int
}

// Destination is a team member and/or a table that receives one partition of a run.
type Destination struct {
	Name  string `yaml:"name"`
	Chat  string `yaml:"chat"`
	Table string `yaml:"table"`
}

// Assignment is the half-open backlog range handed to one destination.
type Assignment struct {
	Destination Destination
	Start       int
	End         int
}

func (a Assignment) Len() int {
	return a.End - a.Start
}

func (a Assignment) Empty() bool {
	return a.End <= a.Start
}

// Batch holds one assignment per destination, in destination order.
type Batch struct {
	Day            int
	PerDestination int
	Start          int
	End            int
	Assignments    []Assignment
}

// Assigned returns the number of rows actually handed out.
func (b Batch) Assigned() int {
	return b.End - b.Start
}

func (b Batch) Empty() bool {
	return b.Assigned() == 0
}

// SendFailure records one message that could not be delivered.
type SendFailure struct {
	Destination string
	Chat        string
	Code        string
	Err         error `json:"-"`
}

// NotifyReport summarises one notification fan-out.
type NotifyReport struct {
	Sent     []string
	Skipped  []string
	Failures []SendFailure
}

// Attempted is the number of destinations a send was tried for.
func (r NotifyReport) Attempted() int {
	return len(r.Sent) + len(r.Failures)
}

// AllFailed reports whether at least one send was attempted and none succeeded.
func (r NotifyReport) AllFailed() bool {
	return len(r.Failures) > 0 && len(r.Sent) == 0
}

// RunResult is what one task invocation produced.
type RunResult struct {
	RunID      string
	Task       string
	StartedAt  time.Time
	FinishedAt time.Time
	Batch      *Batch
	Progress   *Progress
	Report     NotifyReport
	DryRun     bool
}
