// Package keyboard builds reply and inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is an inline button; Unique and Data form its callback payload.
type Button struct {
	Label  string
	Unique string
	Data   string
}

// Reply builds a resized reply keyboard from rows of labels.
func Reply(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	kb := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		row := make(tele.Row, 0, len(labels))
		for _, l := range labels {
			row = append(row, markup.Text(l))
		}
		kb = append(kb, row)
	}
	markup.Reply(kb...)
	return markup
}

// Inline builds an inline keyboard. Empty rows are dropped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	kb := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, *markup.Data(b.Label, b.Unique, b.Data).Inline())
		}
		kb = append(kb, line)
	}
	markup.InlineKeyboard = kb
	return markup
}

// Column places every button on its own row.
func Column(btns []Button) *tele.ReplyMarkup {
	return Grid(btns, 1)
}

// Grid wraps buttons into rows of at most perRow; perRow <= 0 keeps them
// on a single row.
func Grid(btns []Button, perRow int) *tele.ReplyMarkup {
	if perRow <= 0 {
		perRow = len(btns)
	}
	var rows [][]Button
	for len(btns) > 0 {
		n := min(perRow, len(btns))
		rows = append(rows, btns[:n])
		btns = btns[n:]
	}
	return Inline(rows...)
}
