package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "\fflow|d:date:2026-03-11"}, "flow", "d:date:2026-03-11"},
		{"raw without payload", &tele.Callback{Data: "\fmenu"}, "menu", ""},
		{"bound", &tele.Callback{Unique: "lang", Data: "de"}, "lang", "de"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}
