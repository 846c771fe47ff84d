package helpers

import tele "gopkg.in/telebot.v4"

// Update kinds as named in rate_limit.exclude_updates.
const (
	KindMessage  = "message"
	KindCallback = "callback"
	KindInline   = "inline_query"
	KindOther    = "other"
)

// UpdateKind classifies the update behind c.
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInline
	}
	return KindOther
}

// SenderID returns the Telegram id of the update author, or 0.
func SenderID(c tele.Context) int64 {
	if c == nil {
		return 0
	}
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// ChatID returns the chat the update belongs to, or 0.
func ChatID(c tele.Context) int64 {
	if c == nil {
		return 0
	}
	if ch := c.Chat(); ch != nil {
		return ch.ID
	}
	return 0
}

// LanguageCode returns the client language reported by Telegram, e.g. "uk" or "en-US".
func LanguageCode(c tele.Context) string {
	if c == nil {
		return ""
	}
	if u := c.Sender(); u != nil {
		return u.LanguageCode
	}
	return ""
}
