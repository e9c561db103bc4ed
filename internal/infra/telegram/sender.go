package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
)

type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender канал доставки оповещений через Bot API.
type Sender struct {
	api api
}

func NewSender(bot *tgbotapi.BotAPI) *Sender { return &Sender{api: bot} }

func (s *Sender) Send(ctx context.Context, chatID int64, text string) (alerts.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return alerts.OutcomeTransientFailure, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	_, err := s.api.Send(msg)
	return Classify(err), err
}

// Classify RecipientGone когда пользователь заблокировал бота, удалил аккаунт или чат исчез.
func Classify(err error) alerts.Outcome {
	if err == nil {
		return alerts.OutcomeSent
	}

	var code int
	var desc string
	var pe *tgbotapi.Error
	var ve tgbotapi.Error
	switch {
	case errors.As(err, &pe):
		code, desc = pe.Code, pe.Message
	case errors.As(err, &ve):
		code, desc = ve.Code, ve.Message
	default:
		return alerts.OutcomeTransientFailure
	}

	desc = strings.ToLower(desc)
	switch {
	case code == http.StatusForbidden:
		return alerts.OutcomeRecipientGone
	case code == http.StatusBadRequest && (strings.Contains(desc, "chat not found") || strings.Contains(desc, "user not found")):
		return alerts.OutcomeRecipientGone
	}
	return alerts.OutcomeTransientFailure
}
