package flow

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds free-text answers.
	MaxTextLength = 1000
	// MaxBroadcastLength keeps broadcasts under the Telegram message limit.
	MaxBroadcastLength = 4000

	dateLayout  = "2006-01-02"
	timeLayout  = "15:04"
	monthLayout = "2006-01"

	// skipText is the typed equivalent of the skip button.
	skipText = "-"
)

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	timeRe  = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

type checkFunc func(ctx context.Context, in string) (string, error)

func checkText(limit int) checkFunc {
	return func(_ context.Context, in string) (string, error) {
		in = strings.TrimSpace(in)
		if in == "" {
			return "", invalid("err.required")
		}
		if utf8.RuneCountInString(in) > limit {
			return "", invalid("err.too_long", limit)
		}
		return in, nil
	}
}

func checkDate(_ context.Context, in string) (string, error) {
	in = strings.TrimSpace(in)
	if _, err := time.Parse(dateLayout, in); err != nil {
		return "", invalid("err.date")
	}
	return in, nil
}

func checkTime(_ context.Context, in string) (string, error) {
	in = strings.TrimSpace(in)
	if !timeRe.MatchString(in) {
		return "", invalid("err.time")
	}
	if _, err := time.Parse(timeLayout, in); err != nil {
		return "", invalid("err.time")
	}
	return in, nil
}

func checkEmail(_ context.Context, in string) (string, error) {
	in = strings.TrimSpace(in)
	if !emailRe.MatchString(in) {
		return "", invalid("err.email")
	}
	return in, nil
}

// minDate is the first day the calendar offers: tomorrow.
func (e *Engine) minDate() time.Time {
	now := e.now()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

func (e *Engine) checkFutureDate(_ context.Context, in string) (string, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(in), e.now().Location())
	if err != nil {
		return "", invalid("err.date")
	}
	if t.Before(e.minDate()) {
		return "", invalid("err.date_past")
	}
	return t.Format(dateLayout), nil
}
