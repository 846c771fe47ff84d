package middleware

import tele "gopkg.in/telebot.v4"

const outgoingKey = "outgoing"

// Outgoing tallies what a handler sent back during one update.
type Outgoing struct {
	Sent     int
	Edited   int
	Keyboard bool
}

// Messages is the number of messages sent or edited.
func (o Outgoing) Messages() int { return o.Sent + o.Edited }

type countingContext struct {
	tele.Context
	out *Outgoing
}

func (c countingContext) record(edit bool, opts []any) {
	if edit {
		c.out.Edited++
	} else {
		c.out.Sent++
	}
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			c.out.Keyboard = c.out.Keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			c.out.Keyboard = c.out.Keyboard || v != nil
		}
	}
}

func (c countingContext) Send(what any, opts ...any) error {
	err := c.Context.Send(what, opts...)
	if err == nil {
		c.record(false, opts)
	}
	return err
}

func (c countingContext) Reply(what any, opts ...any) error {
	err := c.Context.Reply(what, opts...)
	if err == nil {
		c.record(false, opts)
	}
	return err
}

func (c countingContext) Edit(what any, opts ...any) error {
	err := c.Context.Edit(what, opts...)
	if err == nil {
		c.record(true, opts)
	}
	return err
}

// EditOrSend counts as an edit only for callback updates, mirroring telebot.
func (c countingContext) EditOrSend(what any, opts ...any) error {
	err := c.Context.EditOrSend(what, opts...)
	if err == nil {
		c.record(c.Callback() != nil, opts)
	}
	return err
}

// MessageMetricsMiddleware counts the replies produced for each update so
// handler summaries can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		out := &Outgoing{}
		c.Set(outgoingKey, out)
		return next(countingContext{Context: c, out: out})
	}
}

// OutgoingFrom returns the tally of the current update; zero when the
// metrics middleware is not installed.
func OutgoingFrom(c tele.Context) Outgoing {
	if out, ok := c.Get(outgoingKey).(*Outgoing); ok && out != nil {
		return *out
	}
	return Outgoing{}
}
