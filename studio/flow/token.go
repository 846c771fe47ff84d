package flow

import "strings"

type tokenKind byte

const (
	tokChoose tokenKind = 'c'
	tokDate   tokenKind = 'd'
	tokMonth  tokenKind = 'm'
	tokSkip   tokenKind = 's'
	tokYes    tokenKind = 'y'
	tokNo     tokenKind = 'f'
	tokCancel tokenKind = 'x'
	tokNoop   tokenKind = '_'
)

// selection is a decoded button press: kind:step:value.
type selection struct {
	kind  tokenKind
	step  StepID
	value string
}

func token(kind tokenKind, step StepID, value string) string {
	return string(kind) + ":" + string(step) + ":" + value
}

var (
	// CancelToken aborts whatever conversation the user is in.
	CancelToken = token(tokCancel, "", "")
	noopToken   = token(tokNoop, "", "")
)

func parseToken(raw string) (selection, bool) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || len(parts[0]) != 1 {
		return selection{}, false
	}
	k := tokenKind(parts[0][0])
	switch k {
	case tokChoose, tokDate, tokMonth, tokSkip, tokYes, tokNo, tokCancel, tokNoop:
	default:
		return selection{}, false
	}
	return selection{kind: k, step: StepID(parts[1]), value: parts[2]}, true
}
