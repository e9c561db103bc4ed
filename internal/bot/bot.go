// Package bot чат-интерфейс подписчика: настройка категории и пинкода, включение оповещений,
// разовая проверка слотов и выгрузка для администратора.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Store то, что боту нужно от репозитория подписчиков.
type Store interface {
	GetByTelegramID(ctx context.Context, tgID int64) (*subscribers.Subscriber, error)
	Upsert(ctx context.Context, tg subscribers.Telegram) (*subscribers.Subscriber, error)
	SetPincode(ctx context.Context, id int64, pincode string) error
	SetAgeBand(ctx context.Context, id int64, band availability.AgeBand) error
	SetAlertsEnabled(ctx context.Context, id int64, enabled bool) error
	SoftDelete(ctx context.Context, id int64) error
	ListAll(ctx context.Context) ([]subscribers.Subscriber, error)
}

type Provider interface {
	Fetch(ctx context.Context, pincode string) cowin.Result
}

type Bot struct {
	api       api
	log       *slog.Logger
	subs      Store
	provider  Provider
	adminChat int64
	maxLen    int
	loc       *time.Location
}

func New(botAPI *tgbotapi.BotAPI, log *slog.Logger, subsRepo Store, provider Provider,
	adminChatID int64, maxLen int, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api: botAPI, log: log.With("component", "bot"), subs: subsRepo, provider: provider,
		adminChat: adminChatID, maxLen: maxLen, loc: loc,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if pin, ok := parsePincode(msg.Text); ok {
		b.setPincode(ctx, msg.Chat.ID, telegramOf(msg.From, msg.Chat.ID), pin)
		return
	}
	b.send(tgbotapi.NewMessage(msg.Chat.ID, "Send your 6-digit pincode, or /help to see what I can do."))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	tg := telegramOf(msg.From, chatID)

	switch msg.Command() {
	case "start":
		m := tgbotapi.NewMessage(chatID,
			"Hi! I watch CoWin for open vaccination slots at your pincode and message you when they appear.\n"+
				"Pick your age group, send your pincode and press «Setup Alert».")
		m.ReplyMarkup = mainKeyboard()
		b.send(m)
	case "alert":
		b.setupAlert(ctx, chatID, tg)
	case "check":
		b.checkSlots(ctx, chatID, tg)
	case "stop":
		b.stopAlerts(ctx, chatID, tg.ID)
	case "delete":
		b.deleteSubscriber(ctx, chatID, tg.ID)
	case "export":
		if chatID != b.adminChat || b.adminChat == 0 {
			b.send(tgbotapi.NewMessage(chatID, "Access denied."))
			return
		}
		b.exportSubscribers(ctx, chatID)
	case "help":
		b.send(tgbotapi.NewMessage(chatID, helpText))
	case "about":
		b.send(tgbotapi.NewMessage(chatID, aboutText))
	default:
		b.send(tgbotapi.NewMessage(chatID, "Unknown command. Try /help"))
	}
}

func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	tg := telegramOf(cb.From, chatID)
	_ = b.answerCallback(cb, "", false)

	kind, value, ok := parseCallback(cb.Data)
	if !ok {
		b.log.Warn("unknown callback", "data", cb.Data)
		return
	}
	switch kind {
	case "age":
		band, err := availability.ParseAgeBand(value)
		if err != nil || band == availability.BandUnknown {
			b.send(tgbotapi.NewMessage(chatID, "Unknown age group."))
			return
		}
		b.setAgeBand(ctx, chatID, tg, band)
	case "cmd":
		switch value {
		case "alert":
			b.setupAlert(ctx, chatID, tg)
		case "check":
			b.checkSlots(ctx, chatID, tg)
		case "help":
			b.send(tgbotapi.NewMessage(chatID, helpText))
		case "about":
			b.send(tgbotapi.NewMessage(chatID, aboutText))
		}
	}
}
