package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/raine/fittingap/internal/results"
)

const itemCallbackPrefix = "item:"

// maxButtonLabel keeps inline button labels readable on small screens.
const maxButtonLabel = 40

// renderResultsText formats the results for a Telegram HTML message.
// Only the expanded item shows its description and image link.
func renderResultsText(view results.View, baseURL string) string {
	var sb strings.Builder
	sb.WriteString("<b>" + results.Heading + "</b>\n")
	sb.WriteString("<i>" + pluralize("product", "products", view.Len()) + "</i>\n")

	for i, it := range view.Items() {
		sb.WriteString(fmt.Sprintf("\n%d. <b>%s</b>", i+1, escapeHTML(it.Name)))
		if prices := results.PlainPrices(it.Prices()); prices != "" {
			sb.WriteString("\n" + escapeHTML(prices))
		}
		if view.IsExpanded(i) {
			if it.Description != "" {
				sb.WriteString("\n<i>" + escapeHTML(it.Description) + "</i>")
			}
			sb.WriteString(fmt.Sprintf("\n<a href=\"%s\">Image</a>", escapeHTML(it.ImageURL(baseURL))))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// makeResultsKeyboard returns one toggle button per item.
func makeResultsKeyboard(view results.View) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, it := range view.Items() {
		format := BtnCollapsed
		if view.IsExpanded(i) {
			format = BtnExpanded
		}
		label := fmt.Sprintf(format, i+1, truncate(it.Name, maxButtonLabel))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", itemCallbackPrefix, i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
