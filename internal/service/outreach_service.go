package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach/internal/allocator"
	"outreach/internal/config"
	"outreach/internal/domain"
	"outreach/internal/events"
	"outreach/internal/logging"
	"outreach/internal/models"
	"outreach/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrUnknownTask = errors.New("unknown task")

// Options wires the collaborators of OutreachService. Store is only needed by
// the assign task.
type Options struct {
	Store         domain.RowStore
	Notifier      *Notifier
	Reports       domain.ReportStatusChecker
	Lease         domain.Lease
	Events        domain.EventPublisher
	Policy        allocator.Policy
	Destinations  []models.Destination
	BroadcastChat string
	StoreRetry    worker.RetryPolicy
	Location      *time.Location
	DryRun        bool
	Now           func() time.Time
	Logger        *zerolog.Logger
}

// OutreachService runs the assign, notify and remind tasks.
type OutreachService struct {
	store     domain.RowStore
	notifier  *Notifier
	reports   domain.ReportStatusChecker
	lease     domain.Lease
	events    domain.EventPublisher
	policy    allocator.Policy
	dests     []models.Destination
	broadcast string
	retry     worker.RetryPolicy
	location  *time.Location
	dryRun    bool
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewOutreachService(opts Options) (*OutreachService, error) {
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if len(opts.Destinations) == 0 {
		return nil, allocator.ErrNoDestinations
	}
	// two destinations on one table would overwrite each other's rows
	if err := config.ValidateDestinations(opts.Destinations); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Reports == nil {
		opts.Reports = NewUnknownReportStatus(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &OutreachService{
		store:     opts.Store,
		notifier:  opts.Notifier,
		reports:   opts.Reports,
		lease:     opts.Lease,
		events:    opts.Events,
		policy:    opts.Policy,
		dests:     opts.Destinations,
		broadcast: opts.BroadcastChat,
		retry:     opts.StoreRetry,
		location:  opts.Location,
		dryRun:    opts.DryRun,
		now:       opts.Now,
		logger:    opts.Logger,
	}, nil
}

// Run executes one task and emits exactly one completion log line for it.
func (s *OutreachService) Run(ctx context.Context, task string) (*models.RunResult, error) {
	res := &models.RunResult{
		RunID:     uuid.NewString(),
		Task:      task,
		StartedAt: s.now(),
		DryRun:    s.dryRun,
	}
	log := logging.ForRun(s.logger, res.RunID, task)

	var err error
	switch task {
	case models.TaskAssign:
		err = s.assign(ctx, res, &log)
	case models.TaskNotify:
		err = s.notify(ctx, res, &log)
	case models.TaskRemind:
		err = s.remind(ctx, res, &log)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	res.FinishedAt = s.now()

	status := runStatus(res, err)
	s.publishFinished(ctx, res, status, err, &log)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev = ev.Str("status", status).
		Int("sent", len(res.Report.Sent)).
		Int("skipped", len(res.Report.Skipped)).
		Int("failed", len(res.Report.Failures)).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt))
	if res.Batch != nil {
		ev = ev.Int("day", res.Batch.Day).Int("assigned", res.Batch.Assigned())
	}
	ev.Msg("task finished")

	return res, err
}

func (s *OutreachService) assign(ctx context.Context, res *models.RunResult, log *zerolog.Logger) error {
	if s.store == nil {
		return domain.ErrNoStore
	}

	release := func(context.Context) error { return nil }
	if s.lease != nil && !s.dryRun {
		var err error
		if release, err = s.lease.Acquire(ctx); err != nil {
			return fmt.Errorf("acquire lease: %w", err)
		}
	}

	sheet, batch, next, err := s.commit(ctx, log)
	if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
		log.Warn().Err(relErr).Msg("failed to release lease")
	}
	if err != nil {
		return err
	}
	res.Batch = &batch
	res.Progress = &next

	if s.dryRun {
		for _, a := range batch.Assignments {
			log.Info().
				Str("destination", a.Destination.Name).
				Int("start", a.Start).
				Int("end", a.End).
				Int("rows", len(sheet.Slice(a.Start, a.End))).
				Msg("dry run assignment")
		}
		return nil
	}

	s.publish(ctx, events.EventBatchCommitted, events.BatchCommittedPayload{
		RunID:    res.RunID,
		Batch:    batch,
		Progress: next,
	}, log)

	msgs := make([]Message, 0, len(batch.Assignments)+1)
	for _, a := range batch.Assignments {
		msgs = append(msgs, Message{Destination: a.Destination, Chat: a.Destination.Chat, Text: assignText(a)})
	}
	if s.broadcast != "" {
		msgs = append(msgs, Message{
			Destination: models.Destination{Name: "broadcast", Chat: s.broadcast},
			Chat:        s.broadcast,
			Text:        summaryText(batch),
		})
	}
	res.Report = s.notifier.Send(ctx, models.TaskAssign, msgs)
	return sendOutcome(res.Report)
}

// commit reads the store, allocates and writes the batch. The progress marker is
// written last and only when every earlier write succeeded.
func (s *OutreachService) commit(ctx context.Context, log *zerolog.Logger) (models.Sheet, models.Batch, models.Progress, error) {
	var sheet models.Sheet
	var progress models.Progress

	err := s.storeCall(ctx, "read backlog", func(ctx context.Context) error {
		var err error
		sheet, err = s.store.ReadBacklog(ctx)
		return err
	})
	if err != nil {
		return sheet, models.Batch{}, progress, err
	}
	err = s.storeCall(ctx, "read progress", func(ctx context.Context) error {
		var err error
		progress, err = s.store.ReadProgress(ctx)
		return err
	})
	if err != nil {
		return sheet, models.Batch{}, progress, err
	}

	batch, next, err := allocator.Allocate(len(sheet.Rows), progress, s.dests, s.policy)
	if err != nil {
		return sheet, batch, progress, fmt.Errorf("allocate: %w", err)
	}
	log.Info().
		Int("backlog", len(sheet.Rows)).
		Int("next_index", progress.NextIndex).
		Int("day", batch.Day).
		Int("per_destination", batch.PerDestination).
		Int("start", batch.Start).
		Int("end", batch.End).
		Msg("batch allocated")

	if batch.Empty() {
		log.Warn().Int("day", batch.Day).Msg("backlog exhausted, nothing to assign")
	}
	if s.dryRun {
		return sheet, batch, next, nil
	}

	for _, a := range batch.Assignments {
		if a.Destination.Table == "" {
			continue
		}
		table := a.Destination.Table
		rows := sheet.Slice(a.Start, a.End)
		err := s.storeCall(ctx, "replace table "+table, func(ctx context.Context) error {
			return s.store.ReplaceTable(ctx, table, sheet.Header, rows)
		})
		if err != nil {
			return sheet, batch, progress, err
		}
	}

	if !batch.Empty() {
		err := s.storeCall(ctx, "mark assigned", func(ctx context.Context) error {
			return s.store.MarkAssigned(ctx, batch.Start, batch.End)
		})
		if err != nil {
			return sheet, batch, progress, err
		}
	}

	err = s.storeCall(ctx, "write progress", func(ctx context.Context) error {
		return s.store.WriteProgress(ctx, next)
	})
	if err != nil {
		return sheet, batch, progress, err
	}
	return sheet, batch, next, nil
}

func (s *OutreachService) notify(ctx context.Context, res *models.RunResult, log *zerolog.Logger) error {
	if s.dryRun {
		log.Info().Int("destinations", len(s.dests)).Msg("dry run, report requests not sent")
		return nil
	}
	msgs := make([]Message, 0, len(s.dests))
	for _, d := range s.dests {
		msgs = append(msgs, Message{Destination: d, Chat: d.Chat, Text: notifyText(d)})
	}
	res.Report = s.notifier.Send(ctx, models.TaskNotify, msgs)
	return sendOutcome(res.Report)
}

// remind nudges destinations whose report is not known to be submitted today.
func (s *OutreachService) remind(ctx context.Context, res *models.RunResult, log *zerolog.Logger) error {
	today := s.now().In(s.location)

	var submitted []string
	msgs := make([]Message, 0, len(s.dests))
	for _, d := range s.dests {
		done, err := s.reports.HasSubmitted(ctx, d, today)
		if err != nil {
			log.Warn().Err(err).Str("destination", d.Name).Msg("report status unknown, reminding")
			done = false
		}
		if done {
			submitted = append(submitted, d.Name)
			continue
		}
		msgs = append(msgs, Message{Destination: d, Chat: d.Chat, Text: remindText(d)})
	}

	if s.dryRun {
		log.Info().Int("reminders", len(msgs)).Strs("submitted", submitted).Msg("dry run, reminders not sent")
		return nil
	}
	res.Report = s.notifier.Send(ctx, models.TaskRemind, msgs)
	res.Report.Skipped = append(res.Report.Skipped, submitted...)
	return sendOutcome(res.Report)
}

func (s *OutreachService) storeCall(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := worker.Do(ctx, s.retry, fn); err != nil {
		return &domain.RowStoreError{Op: op, Err: err}
	}
	return nil
}

func (s *OutreachService) publishFinished(ctx context.Context, res *models.RunResult, status string, runErr error, log *zerolog.Logger) {
	payload := events.RunFinishedPayload{Result: res, Status: status}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	s.publish(ctx, events.EventRunFinished, payload, log)
}

func (s *OutreachService) publish(ctx context.Context, eventType string, payload interface{}, log *zerolog.Logger) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(context.WithoutCancel(ctx), eventType, payload); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("event subscriber failed")
	}
}

func sendOutcome(report models.NotifyReport) error {
	if report.AllFailed() {
		return fmt.Errorf("%w: %d of %d", domain.ErrAllFailed, len(report.Failures), report.Attempted())
	}
	return nil
}

func runStatus(res *models.RunResult, err error) string {
	switch {
	case err != nil:
		return models.RunStatusFailed
	case res.DryRun:
		return models.RunStatusDryRun
	case len(res.Report.Failures) > 0:
		return models.RunStatusPartial
	default:
		return models.RunStatusSuccess
	}
}
