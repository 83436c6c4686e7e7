package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"outreach/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// NewBotAPI builds a send-only client without the getMe round trip that
// tgbotapi.NewBotAPI makes, so an unreachable Telegram surfaces as per-message
// send failures instead of aborting the run. endpoint uses the
// tgbotapi.APIEndpoint format.
func NewBotAPI(token, endpoint string, client *http.Client) *tgbotapi.BotAPI {
	if client == nil {
		client = &http.Client{}
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: client,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return bot
}

// TelegramService posts plain-text messages through the Bot API, throttled to
// stay under Telegram's per-bot limits.
type TelegramService struct {
	bot     domain.TelegramSender
	limiter *rate.Limiter
}

func NewTelegramService(bot domain.TelegramSender, perSecond float64, burst int) *TelegramService {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &TelegramService{
		bot:     bot,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Post sends text to a numeric chat id or an @channel handle.
func (s *TelegramService) Post(ctx context.Context, chat, text string) error {
	msg, err := messageFor(chat, text)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return &domain.MessagingError{Chat: chat, Code: domain.CodeTimeout, Reason: err.Error(), Err: err}
	}

	// Send has no context; run it aside so the caller's deadline still applies.
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return &domain.MessagingError{Chat: chat, Code: domain.CodeTimeout, Reason: ctx.Err().Error(), Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return classify(chat, err)
		}
		return nil
	}
}

func messageFor(chat, text string) (tgbotapi.MessageConfig, error) {
	chat = strings.TrimSpace(chat)
	if strings.HasPrefix(chat, "@") && len(chat) > 1 {
		return tgbotapi.NewMessageToChannel(chat, text), nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil || id == 0 {
		return tgbotapi.MessageConfig{}, &domain.MessagingError{
			Chat:   chat,
			Code:   domain.CodeInvalidChat,
			Reason: "chat must be a numeric id or an @handle",
		}
	}
	return tgbotapi.NewMessage(id, text), nil
}

func classify(chat string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &domain.MessagingError{
			Chat:   chat,
			Code:   strconv.Itoa(apiErr.Code),
			Reason: apiErr.Message,
			Err:    err,
		}
	}
	return &domain.MessagingError{Chat: chat, Code: domain.CodeTransport, Reason: err.Error(), Err: err}
}

// Transient reports whether a send failure is worth one more attempt.
func Transient(err error) bool {
	var me *domain.MessagingError
	if !errors.As(err, &me) {
		return true
	}
	switch me.Code {
	case domain.CodeTransport, domain.CodeTimeout:
		return true
	case domain.CodeInvalidChat:
		return false
	}
	code, convErr := strconv.Atoi(me.Code)
	if convErr != nil {
		return false
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
