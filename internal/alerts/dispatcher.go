package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/clock"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

var ErrEmptySnapshot = errors.New("alerts: empty snapshot")

// Outcome результат доставки одного оповещения.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeRecipientGone
	OutcomeTransientFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeRecipientGone:
		return "recipient_gone"
	default:
		return "transient_failure"
	}
}

// Channel канал доставки. err только для логов, решение принимается по Outcome.
type Channel interface {
	Send(ctx context.Context, chatID int64, text string) (Outcome, error)
}

type Store interface {
	MarkAlertSent(ctx context.Context, id int64, at time.Time) error
	DisableAlerts(ctx context.Context, id int64) error
}

type Dispatcher struct {
	channel Channel
	store   Store
	clock   clock.Clock
	maxLen  int
	log     *slog.Logger
}

func NewDispatcher(ch Channel, store Store, clk clock.Clock, maxLen int, log *slog.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	return &Dispatcher{channel: ch, store: store, clock: clk, maxLen: maxLen, log: log}
}

// Dispatch отправляет снимок подписчику и сохраняет результат до возврата.
// Пустой снимок это ошибка вызывающего.
func (d *Dispatcher) Dispatch(ctx context.Context, s *subscribers.Subscriber, snap availability.Snapshot) (Outcome, error) {
	if snap.Empty() {
		return OutcomeTransientFailure, ErrEmptySnapshot
	}

	text := Render(snap, d.maxLen)
	outcome, sendErr := d.channel.Send(ctx, s.ChatID, text)
	log := d.log.With("subscriber_id", s.ID, "pincode", snap.Pincode)

	switch outcome {
	case OutcomeSent:
		at := d.clock.Now()
		if err := d.store.MarkAlertSent(ctx, s.ID, at); err != nil {
			return outcome, fmt.Errorf("mark alert sent: %w", err)
		}
		if at.After(s.LastAlertSentAt) {
			s.LastAlertSentAt = at
		}
		s.TotalAlertsSent++
		log.Info("alert sent", "centers", len(snap.Centers), "total", s.TotalAlertsSent)

	case OutcomeRecipientGone:
		if err := d.store.DisableAlerts(ctx, s.ID); err != nil {
			return outcome, fmt.Errorf("disable alerts: %w", err)
		}
		s.AlertsEnabled = false
		log.Info("recipient gone, alerts disabled", "reason", sendErr)

	default:
		log.Warn("alert delivery failed", "err", sendErr)
	}
	return outcome, nil
}
