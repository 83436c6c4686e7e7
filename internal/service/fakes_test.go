package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"outreach/internal/models"
)

type post struct {
	Chat string
	Text string
}

type fakeMessenger struct {
	mu    sync.Mutex
	posts []post
	fail  map[string]error
	// flaky chats fail on their first attempt only
	flaky map[string]bool
	tries map[string]int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{fail: map[string]error{}, flaky: map[string]bool{}, tries: map[string]int{}}
}

func (m *fakeMessenger) Post(_ context.Context, chat, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tries[chat]++
	if err, ok := m.fail[chat]; ok {
		return err
	}
	if m.flaky[chat] && m.tries[chat] == 1 {
		return errors.New("connection reset")
	}
	m.posts = append(m.posts, post{Chat: chat, Text: text})
	return nil
}

func (m *fakeMessenger) chats() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.posts))
	for i, p := range m.posts {
		out[i] = p.Chat
	}
	return out
}

type memoryStore struct {
	sheet    models.Sheet
	progress models.Progress
	tables   map[string][]models.Lead
	marked   [][2]int
	calls    []string
	fail     map[string]error
}

func newMemoryStore(rows int) *memoryStore {
	s := &memoryStore{
		sheet:  models.Sheet{Header: []interface{}{"Company", "Email"}},
		tables: map[string][]models.Lead{},
		fail:   map[string]error{},
	}
	for i := 0; i < rows; i++ {
		s.sheet.Rows = append(s.sheet.Rows, models.Lead{Index: i, Cells: []interface{}{i}})
	}
	return s
}

func (s *memoryStore) op(name string) error {
	s.calls = append(s.calls, name)
	return s.fail[name]
}

func (s *memoryStore) ReadBacklog(context.Context) (models.Sheet, error) {
	return s.sheet, s.op("read_backlog")
}

func (s *memoryStore) ReadProgress(context.Context) (models.Progress, error) {
	return s.progress, s.op("read_progress")
}

func (s *memoryStore) WriteProgress(_ context.Context, p models.Progress) error {
	if err := s.op("write_progress"); err != nil {
		return err
	}
	s.progress = p
	return nil
}

func (s *memoryStore) ReplaceTable(_ context.Context, table string, _ []interface{}, rows []models.Lead) error {
	if err := s.op("replace_table:" + table); err != nil {
		return err
	}
	s.tables[table] = rows
	return nil
}

func (s *memoryStore) MarkAssigned(_ context.Context, start, end int) error {
	if err := s.op("mark_assigned"); err != nil {
		return err
	}
	s.marked = append(s.marked, [2]int{start, end})
	return nil
}

type stubReports struct {
	submitted map[string]bool
	err       map[string]error
	dates     []time.Time
}

func (r *stubReports) HasSubmitted(_ context.Context, d models.Destination, date time.Time) (bool, error) {
	r.dates = append(r.dates, date)
	if err := r.err[d.Name]; err != nil {
		return false, err
	}
	return r.submitted[d.Name], nil
}

type heldLease struct{ err error }

func (l heldLease) Acquire(context.Context) (func(context.Context) error, error) {
	return nil, l.err
}

type countingLease struct{ acquired, released int }

func (l *countingLease) Acquire(context.Context) (func(context.Context) error, error) {
	l.acquired++
	return func(context.Context) error { l.released++; return nil }, nil
}
