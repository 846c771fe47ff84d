package helpers

import (
	"strings"
	"time"
)

// Date layouts seen in record cells: the canonical ISO form written by the
// bot and the dotted form people type into a spreadsheet by hand.
var dateLayouts = []string{"2006-01-02", "2006-1-2", "02.01.2006", "2.1.2006"}

var clockLayouts = []string{"15:04", "15.04"}

// ParseDateTime reads a date cell and an optional clock cell in the local
// timezone. An unparsable clock falls back to midnight of the date.
func ParseDateTime(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" {
		return time.Time{}, false
	}
	var day time.Time
	ok := false
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, date, time.Local); err == nil {
			day, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, false
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), true
		}
	}
	return day, true
}
