package bot

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

/*** HELPERS ***/

// "560001", "pincode 560001", "Pincode560001"
var pincodeRe = regexp.MustCompile(`(?i)^\s*(pincode)?\s*(\d{6})\s*`)

func parsePincode(text string) (string, bool) {
	m := pincodeRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// parseCallback "age:18" -> ("age", "18")
func parseCallback(data string) (string, string, bool) {
	kind, value, ok := strings.Cut(data, ":")
	if !ok || kind == "" || value == "" {
		return "", "", false
	}
	return kind, value, true
}

func telegramOf(u *tgbotapi.User, chatID int64) subscribers.Telegram {
	return subscribers.Telegram{ID: u.ID, ChatID: chatID, Username: u.UserName}
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string, alert bool) error {
	resp := tgbotapi.NewCallback(cb.ID, text)
	resp.ShowAlert = alert
	_, err := b.api.Request(resp)
	return err
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}
