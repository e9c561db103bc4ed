package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
	"github.com/Spok95/cowin-alert-bot/internal/report"
)

const saveFailed = "Could not save your settings, please try again."

// upsert лениво заводит подписчика; удалённого оживляет.
func (b *Bot) upsert(ctx context.Context, chatID int64, tg subscribers.Telegram) *subscribers.Subscriber {
	s, err := b.subs.Upsert(ctx, tg)
	if err != nil {
		b.log.Error("upsert subscriber failed", "telegram_id", tg.ID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return nil
	}
	return s
}

func (b *Bot) setAgeBand(ctx context.Context, chatID int64, tg subscribers.Telegram, band availability.AgeBand) {
	s := b.upsert(ctx, chatID, tg)
	if s == nil {
		return
	}
	if err := b.subs.SetAgeBand(ctx, s.ID, band); err != nil {
		b.log.Error("set age band failed", "subscriber_id", s.ID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	if s.Pincode == "" {
		b.send(tgbotapi.NewMessage(chatID, "Age preference has been set. Please enter your pincode to proceed."))
		return
	}
	m := tgbotapi.NewMessage(chatID, fmt.Sprintf("Age preference set to %s.", band))
	m.ReplyMarkup = mainKeyboard()
	b.send(m)
}

func (b *Bot) setPincode(ctx context.Context, chatID int64, tg subscribers.Telegram, pincode string) {
	s := b.upsert(ctx, chatID, tg)
	if s == nil {
		return
	}
	if err := b.subs.SetPincode(ctx, s.ID, pincode); err != nil {
		b.log.Error("set pincode failed", "subscriber_id", s.ID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	if s.AgeBand == availability.BandUnknown {
		m := tgbotapi.NewMessage(chatID, fmt.Sprintf("Pincode is set to %s. Now select your age group:", pincode))
		m.ReplyMarkup = ageKeyboard()
		b.send(m)
		return
	}
	m := tgbotapi.NewMessage(chatID, fmt.Sprintf("Pincode is set to %s.", pincode))
	m.ReplyMarkup = mainKeyboard()
	b.send(m)
}

// ready true, если у подписчика заданы категория и пинкод; иначе спрашивает недостающее.
func (b *Bot) ready(chatID int64, s *subscribers.Subscriber) bool {
	if s.AgeBand == availability.BandUnknown {
		m := tgbotapi.NewMessage(chatID, "Select your age group:")
		m.ReplyMarkup = ageKeyboard()
		b.send(m)
		return false
	}
	if s.Pincode == "" {
		b.send(tgbotapi.NewMessage(chatID, "Pincode is not set. Send your 6-digit pincode, e.g. 560001."))
		return false
	}
	return true
}

func (b *Bot) setupAlert(ctx context.Context, chatID int64, tg subscribers.Telegram) {
	s := b.upsert(ctx, chatID, tg)
	if s == nil || !b.ready(chatID, s) {
		return
	}
	if err := b.subs.SetAlertsEnabled(ctx, s.ID, true); err != nil {
		b.log.Error("enable alerts failed", "subscriber_id", s.ID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	b.log.Info("alerts enabled", "subscriber_id", s.ID, "pincode", s.Pincode, "age_band", s.AgeBand.String())
	b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"Alerts are on for pincode %s (%s). I will message you when slots open up. /stop turns them off.",
		s.Pincode, s.AgeBand)))
}

func (b *Bot) checkSlots(ctx context.Context, chatID int64, tg subscribers.Telegram) {
	s := b.upsert(ctx, chatID, tg)
	if s == nil || !b.ready(chatID, s) {
		return
	}

	res := b.provider.Fetch(ctx, s.Pincode)
	switch res.Status {
	case cowin.StatusOK:
	case cowin.StatusInvalidInput:
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("CoWin does not know pincode %s. Please send a valid one.", s.Pincode)))
		return
	default:
		b.log.Warn("check slots failed", "pincode", s.Pincode, "status", res.Status, "err", res.Err)
		b.send(tgbotapi.NewMessage(chatID, "CoWin is not answering right now, please try again later."))
		return
	}

	snap := availability.Filter(res.Snapshot.Available(), s.AgeBand)
	if snap.Empty() {
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Sorry, no slots available at %s right now.", s.Pincode)))
		return
	}
	m := tgbotapi.NewMessage(chatID, alerts.Render(snap, b.maxLen))
	m.ParseMode = tgbotapi.ModeMarkdown
	m.DisableWebPagePreview = true
	b.send(m)
}

func (b *Bot) stopAlerts(ctx context.Context, chatID, tgID int64) {
	s, err := b.subs.GetByTelegramID(ctx, tgID)
	if err != nil {
		b.log.Error("get subscriber failed", "telegram_id", tgID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	if s == nil || s.Deleted() || !s.AlertsEnabled {
		b.send(tgbotapi.NewMessage(chatID, "Alerts are already off."))
		return
	}
	if err := b.subs.SetAlertsEnabled(ctx, s.ID, false); err != nil {
		b.log.Error("disable alerts failed", "subscriber_id", s.ID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	b.send(tgbotapi.NewMessage(chatID, "Alerts are off. /alert turns them back on."))
}

func (b *Bot) deleteSubscriber(ctx context.Context, chatID, tgID int64) {
	s, err := b.subs.GetByTelegramID(ctx, tgID)
	if err != nil {
		b.log.Error("get subscriber failed", "telegram_id", tgID, "err", err)
		b.send(tgbotapi.NewMessage(chatID, saveFailed))
		return
	}
	if s != nil && !s.Deleted() {
		if err := b.subs.SoftDelete(ctx, s.ID); err != nil && !errors.Is(err, subscribers.ErrNotFound) {
			b.log.Error("delete subscriber failed", "subscriber_id", s.ID, "err", err)
			b.send(tgbotapi.NewMessage(chatID, saveFailed))
			return
		}
		b.log.Info("subscriber deleted", "subscriber_id", s.ID)
	}
	b.send(tgbotapi.NewMessage(chatID, "Your settings are deleted. Send /start to set things up again."))
}

func (b *Bot) exportSubscribers(ctx context.Context, chatID int64) {
	list, err := b.subs.ListAll(ctx)
	if err != nil {
		b.log.Error("list subscribers failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Could not load subscribers."))
		return
	}
	data, err := report.Subscribers(list, b.loc)
	if err != nil {
		b.log.Error("build subscribers report failed", "err", err)
		b.send(tgbotapi.NewMessage(chatID, "Could not build the report."))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  report.FileName(time.Now().In(b.loc)),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("Subscribers: %d", len(list))
	b.send(doc)
}
