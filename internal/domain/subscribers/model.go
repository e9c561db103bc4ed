package subscribers

import (
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

type Subscriber struct {
	ID         int64
	TelegramID int64
	ChatID     int64 // адрес доставки
	Username   string

	Pincode string // "" = не задан (NULL в БД)
	AgeBand availability.AgeBand

	AlertsEnabled   bool
	LastAlertSentAt time.Time // zero = ещё не отправляли
	TotalAlertsSent int

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Subscriber) Deleted() bool { return s.DeletedAt != nil }

// Eligible подписчик может участвовать в цикле опроса.
func (s Subscriber) Eligible() bool {
	return s.AlertsEnabled && !s.Deleted() && s.Pincode != ""
}

type Telegram struct {
	ID       int64
	ChatID   int64
	Username string
}
