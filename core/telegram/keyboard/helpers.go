package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
)

// InlineBtn describes a convenience wrapper for inline button properties.
// An empty Unique sends Data verbatim as callback data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// FromReply renders a reply's choices one per row and its actions on a final row.
// It returns nil when the reply has no buttons.
func FromReply(r dispatch.Reply) *tele.ReplyMarkup {
	if len(r.Choices) == 0 && len(r.Actions) == 0 {
		return nil
	}
	rows := make([][]InlineBtn, 0, len(r.Choices)+1)
	for _, c := range r.Choices {
		rows = append(rows, []InlineBtn{{Text: c.Label, Data: c.Data}})
	}
	if len(r.Actions) > 0 {
		row := make([]InlineBtn, 0, len(r.Actions))
		for _, a := range r.Actions {
			row = append(row, InlineBtn{Text: a.Label, Data: a.Data})
		}
		rows = append(rows, row)
	}
	return InlineButtonsRows(rows...)
}
