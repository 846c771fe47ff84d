package i18n

import "strings"

// Lang is a supported display language code.
type Lang string

const (
	UK Lang = "uk"
	EN Lang = "en"
	DE Lang = "de"
)

// Supported lists display languages in fallback order.
var Supported = []Lang{UK, EN, DE}

// Parse normalizes a language code. "ua" is accepted as an alias of "uk"
// and region suffixes such as "en-US" are dropped.
func Parse(code string) (Lang, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, _, ok := strings.Cut(code, "-"); ok {
		code = base
	}
	if code == "ua" {
		code = string(UK)
	}
	for _, l := range Supported {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}
