package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"avt-guide/internal/chat"
)

const suggestionPrefix = "sg:"

// renderReply turns a bot message into Telegram HTML. Emphasized phrases are
// wrapped in <b>; offers are listed after the text.
func renderReply(msg chat.Message) string {
	if msg.Data == nil {
		return html.EscapeString(msg.Text)
	}
	resp := msg.Data
	var sb strings.Builder
	for i, p := range resp.Content.Paragraphs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(emphasize(p.Text, p.Emphasis))
	}
	if resp.Posts != nil && len(resp.Posts.Results) > 0 {
		sb.WriteString("\n")
		for _, post := range resp.Posts.Results {
			sb.WriteString("\n")
			sb.WriteString(renderPost(post))
		}
	}
	if q := resp.Content.FollowUp(); q != "" {
		sb.WriteString("\n\n<i>")
		sb.WriteString(html.EscapeString(q))
		sb.WriteString("</i>")
	}
	return sb.String()
}

func renderPost(p chat.PostSummary) string {
	var sb strings.Builder
	sb.WriteString("• <b>")
	sb.WriteString(html.EscapeString(p.Title))
	sb.WriteString("</b>")
	if len(p.Destinations) > 0 {
		sb.WriteString(" (")
		sb.WriteString(html.EscapeString(strings.Join(p.Destinations, ", ")))
		sb.WriteString(")")
	}
	if p.Price != "" {
		fmt.Fprintf(&sb, " %s DZD", html.EscapeString(p.Price))
	}
	if p.Agency != "" {
		sb.WriteString(" / ")
		sb.WriteString(html.EscapeString(p.Agency))
	}
	return sb.String()
}

// emphasize escapes text and bolds the first occurrence of every phrase.
func emphasize(text string, phrases []string) string {
	type span struct{ start, end int }
	var spans []span
	for _, ph := range phrases {
		if ph == "" {
			continue
		}
		i := strings.Index(text, ph)
		if i < 0 {
			continue
		}
		s := span{i, i + len(ph)}
		overlap := false
		for _, o := range spans {
			if s.start < o.end && o.start < s.end {
				overlap = true
				break
			}
		}
		if !overlap {
			spans = append(spans, s)
		}
	}
	if len(spans) == 0 {
		return html.EscapeString(text)
	}
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
	var sb strings.Builder
	pos := 0
	for _, s := range spans {
		sb.WriteString(html.EscapeString(text[pos:s.start]))
		sb.WriteString("<b>")
		sb.WriteString(html.EscapeString(text[s.start:s.end]))
		sb.WriteString("</b>")
		pos = s.end
	}
	sb.WriteString(html.EscapeString(text[pos:]))
	return sb.String()
}

// suggestionKeyboard lays suggestions out two per row.
func suggestionKeyboard(items []chat.Suggestion) *tgbotapi.InlineKeyboardMarkup {
	if len(items) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, s := range items {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.Label, suggestionPrefix+strconv.Itoa(i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// suggestionIndex parses "sg:<i>" callback data.
func suggestionIndex(data string) (int, bool) {
	if !strings.HasPrefix(data, suggestionPrefix) {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimPrefix(data, suggestionPrefix))
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
