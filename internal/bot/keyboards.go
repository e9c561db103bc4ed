package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const helpText = "Commands:\n" +
	"/start - main menu\n" +
	"/alert - turn on slot alerts\n" +
	"/check - check slots right now\n" +
	"/stop - turn off alerts\n" +
	"/delete - forget my settings\n" +
	"To change the pincode just send a new one, e.g. 560001."

const aboutText = "Slot data comes from the public CoWin API. Alerts are throttled so you are not spammed: " +
	"18+ at most every 30 minutes, 45+ at most every 2 hours."

func mainKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Setup Alert", "cmd:alert"),
			tgbotapi.NewInlineKeyboardButtonData("🔍 Check Available Slots", "cmd:check"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Help", "cmd:help"),
			tgbotapi.NewInlineKeyboardButtonData("About", "cmd:about"),
		),
	)
}

func ageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("18-44", "age:18"),
			tgbotapi.NewInlineKeyboardButtonData("45+", "age:45"),
			tgbotapi.NewInlineKeyboardButtonData("Both", "age:any"),
		),
	)
}
