package domain

import (
	"context"
	"time"

	"outreach/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RowStore is the spreadsheet holding the backlog, the progress cells and the
// destination tables.
type RowStore interface {
	ReadBacklog(ctx context.Context) (models.Sheet, error)
	ReadProgress(ctx context.Context) (models.Progress, error)
	WriteProgress(ctx context.Context, p models.Progress) error
	ReplaceTable(ctx context.Context, table string, header []interface{}, rows []models.Lead) error
	MarkAssigned(ctx context.Context, start, end int) error
}

// Messenger posts a text message to a chat id or channel handle.
type Messenger interface {
	Post(ctx context.Context, chat, text string) error
}

// TelegramSender is the part of *tgbotapi.BotAPI the messenger needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReportStatusChecker answers whether a destination submitted its daily report.
type ReportStatusChecker interface {
	HasSubmitted(ctx context.Context, dest models.Destination, date time.Time) (bool, error)
}

// Lease guards the allocate-and-commit sequence against overlapping runs.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// EventPublisher announces run events to whoever subscribed (journal, metrics).
type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) error
}

// Recorder collects run metrics.
type Recorder interface {
	ObserveRun(task, status string, duration time.Duration)
	AddAssigned(dest string, n int)
	IncSendFailure(task, code string)
}
