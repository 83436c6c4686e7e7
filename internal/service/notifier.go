package service

import (
	"context"
	"sync"
	"time"

	"outreach/internal/domain"
	"outreach/internal/models"
	"outreach/internal/worker"

	"github.com/rs/zerolog"
)

// Message is one outgoing chat message.
type Message struct {
	Destination models.Destination
	Chat        string
	Text        string
}

// Notifier fans messages out one by one. A failed send is logged and recorded;
// it never stops the remaining sends.
type Notifier struct {
	messenger domain.Messenger
	policy    worker.RetryPolicy
	recorder  domain.Recorder
	logger    *zerolog.Logger
}

func NewNotifier(messenger domain.Messenger, policy worker.RetryPolicy, recorder domain.Recorder, logger *zerolog.Logger) *Notifier {
	if policy.Retryable == nil {
		policy.Retryable = Transient
	}
	return &Notifier{
		messenger: messenger,
		policy:    policy,
		recorder:  recorder,
		logger:    logger,
	}
}

// Send delivers msgs in order. Messages without a chat are reported as skipped.
func (n *Notifier) Send(ctx context.Context, task string, msgs []Message) models.NotifyReport {
	var report models.NotifyReport
	for _, m := range msgs {
		name := m.Destination.Name
		if m.Chat == "" {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		err := worker.Do(ctx, n.policy, func(ctx context.Context) error {
			return n.messenger.Post(ctx, m.Chat, m.Text)
		})
		if err != nil {
			code := domain.ErrorCode(err)
			n.logger.Error().Err(err).Str("destination", name).Str("chat", m.Chat).Str("code", code).Msg("send failed")
			if n.recorder != nil {
				n.recorder.IncSendFailure(task, code)
			}
			report.Failures = append(report.Failures, models.SendFailure{
				Destination: name,
				Chat:        m.Chat,
				Code:        code,
				Err:         err,
			})
			continue
		}
		report.Sent = append(report.Sent, name)
	}
	return report
}

// UnknownReportStatus is the checker used until report tracking is wired up.
// It never knows, and unknown counts as not submitted so reminders still go out.
type UnknownReportStatus struct {
	logger *zerolog.Logger
	once   sync.Once
}

func NewUnknownReportStatus(logger *zerolog.Logger) *UnknownReportStatus {
	return &UnknownReportStatus{logger: logger}
}

func (u *UnknownReportStatus) HasSubmitted(ctx context.Context, dest models.Destination, date time.Time) (bool, error) {
	u.once.Do(func() {
		if u.logger != nil {
			u.logger.Warn().Msg("report submission check is not configured; reminding everyone")
		}
	})
	return false, nil
}
