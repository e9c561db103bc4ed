package alerts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
)

// MaxMessageLen лимит длины сообщения в Telegram.
const MaxMessageLen = 4096

const truncationNotice = "… and more, open the CoWin portal for the full list"

func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

// Render собирает текст в Telegram Markdown. Каждая строка самодостаточна
// по разметке, поэтому обрезка идёт по целым строкам.
func Render(s availability.Snapshot, maxLen int) string {
	lines := []string{fmt.Sprintf("Following slots are available for pincode %s:", esc(s.Pincode))}
	for _, c := range s.Centers {
		lines = append(lines, "", "*"+esc(c.Title())+"*")
		for _, ss := range c.Sessions {
			line := fmt.Sprintf("• %s: %d", esc(ss.Date), ss.Capacity)
			if details := sessionDetails(ss, c.FeeType); details != "" {
				line += " (" + esc(details) + ")"
			}
			lines = append(lines, line)
		}
	}

	full := strings.Join(lines, "\n")
	if maxLen <= 0 || utf8.RuneCountInString(full) <= maxLen {
		return full
	}

	budget := maxLen - utf8.RuneCountInString(truncationNotice) - 1
	var b strings.Builder
	size := 0
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i > 0 {
			n++
		}
		if size+n > budget {
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		size += n
	}
	b.WriteByte('\n')
	b.WriteString(truncationNotice)
	return b.String()
}

func sessionDetails(s availability.Session, fee string) string {
	var parts []string
	if s.Vaccine != "" {
		parts = append(parts, s.Vaccine)
	}
	if fee != "" {
		parts = append(parts, fee)
	}
	return strings.Join(parts, ", ")
}
