package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
)

type fakeAPI struct {
	err  error
	msgs []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.msgs = append(f.msgs, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want alerts.Outcome
	}{
		{name: "ok", err: nil, want: alerts.OutcomeSent},
		{name: "blocked", err: &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, want: alerts.OutcomeRecipientGone},
		{name: "deactivated", err: tgbotapi.Error{Code: 403, Message: "Forbidden: user is deactivated"}, want: alerts.OutcomeRecipientGone},
		{name: "chat not found", err: &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, want: alerts.OutcomeRecipientGone},
		{name: "bad markdown", err: &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities"}, want: alerts.OutcomeTransientFailure},
		{name: "flood", err: &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 5"}, want: alerts.OutcomeTransientFailure},
		{name: "wrapped", err: fmt.Errorf("send: %w", &tgbotapi.Error{Code: 403}), want: alerts.OutcomeRecipientGone},
		{name: "network", err: errors.New("dial tcp: i/o timeout"), want: alerts.OutcomeTransientFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), tt.name)
	}
}

func TestSenderUsesMarkdown(t *testing.T) {
	f := &fakeAPI{}
	s := &Sender{api: f}

	outcome, err := s.Send(context.Background(), 42, "*hi*")
	require.NoError(t, err)
	assert.Equal(t, alerts.OutcomeSent, outcome)
	require.Len(t, f.msgs, 1)
	assert.Equal(t, int64(42), f.msgs[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, f.msgs[0].ParseMode)
}

func TestSenderCancelledContext(t *testing.T) {
	f := &fakeAPI{}
	s := &Sender{api: f}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := s.Send(ctx, 42, "x")
	assert.Equal(t, alerts.OutcomeTransientFailure, outcome)
	assert.Error(t, err)
	assert.Empty(t, f.msgs)
}
