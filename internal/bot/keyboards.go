package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"photocal/internal/models"
	"photocal/internal/screen"
)

func genderLabels() []string {
	out := make([]string, 0, len(models.Genders))
	for _, g := range models.Genders {
		out = append(out, g.Label())
	}
	return out
}

func goalLabels() []string {
	out := make([]string, 0, len(models.Goals))
	for _, g := range models.Goals {
		out = append(out, g.Label())
	}
	return out
}

func buttons(labels ...string) []tgbotapi.KeyboardButton {
	row := make([]tgbotapi.KeyboardButton, 0, len(labels))
	for _, l := range labels {
		row = append(row, tgbotapi.NewKeyboardButton(l))
	}
	return row
}

// withChrome appends the host buttons to rows: the main button first, then
// back.
func withChrome(chrome screen.Chrome, rows ...[]tgbotapi.KeyboardButton) interface{} {
	if chrome.MainButtonVisible && chrome.MainButtonText != "" {
		rows = append([][]tgbotapi.KeyboardButton{buttons(chrome.MainButtonText)}, rows...)
	}
	if chrome.BackButtonVisible {
		rows = append(rows, buttons(btnBack))
	}
	if len(rows) == 0 {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func homeKeyboard(chrome screen.Chrome) interface{} {
	return withChrome(chrome, buttons(btnSummary, btnProfile))
}

func summaryKeyboard(chrome screen.Chrome) interface{} {
	return withChrome(chrome, buttons(btnEndDay))
}

// backKeyboard lays out labels two per row above the back button.
func backKeyboard(chrome screen.Chrome, labels ...string) interface{} {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(labels); i += 2 {
		end := min(i+2, len(labels))
		rows = append(rows, buttons(labels[i:end]...))
	}
	return withChrome(chrome, rows...)
}

// choiceKeyboard is used on the profile form, whose chrome has no buttons;
// a cancel row is offered once a profile exists.
func choiceKeyboard(labels []string, cancellable bool) interface{} {
	rows := [][]tgbotapi.KeyboardButton{buttons(labels...)}
	if cancellable {
		rows = append(rows, buttons(btnCancel))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard(cancellable bool) interface{} {
	if !cancellable {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	kb := tgbotapi.NewReplyKeyboard(buttons(btnCancel))
	kb.ResizeKeyboard = true
	return kb
}
