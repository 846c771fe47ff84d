package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardTransitions(t *testing.T) {
	ctx := context.Background()
	w := newWizard("demo", false, nil,
		Step{ID: "a"}, Step{ID: "b"}, Step{ID: "c"},
	)

	next, err := w.fire(ctx, "a", evNext)
	require.NoError(t, err)
	assert.Equal(t, StepID("b"), next)

	next, err = w.fire(ctx, "c", evCommit)
	require.NoError(t, err)
	assert.Equal(t, stepDone, next)

	_, err = w.fire(ctx, "a", evCommit)
	assert.Error(t, err)
	_, err = w.fire(ctx, "c", evNext)
	assert.Error(t, err)

	for _, id := range []StepID{"a", "b", "c"} {
		next, err = w.fire(ctx, id, evCancel)
		require.NoError(t, err)
		assert.Equal(t, stepCancelled, next)
	}
	assert.True(t, w.isLast("c"))
	assert.False(t, w.isLast("a"))
}

func TestParseToken(t *testing.T) {
	sel, ok := parseToken("d:date:2026-03-11")
	require.True(t, ok)
	assert.Equal(t, selection{kind: tokDate, step: "date", value: "2026-03-11"}, sel)

	sel, ok = parseToken(CancelToken)
	require.True(t, ok)
	assert.Equal(t, tokCancel, sel.kind)

	for _, bad := range []string{"", "d:date", "zz:a:b", "q:a:b"} {
		_, ok := parseToken(bad)
		assert.False(t, ok, bad)
	}
}

func TestValidators(t *testing.T) {
	ctx := context.Background()
	e := &Engine{now: func() time.Time { return fixedNow }}

	for _, in := range []string{"2026-02-30", "26-01-01", "2026/01/01"} {
		_, err := checkDate(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
	v, err := checkDate(ctx, " 2026-02-28 ")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", v)

	for _, in := range []string{"24:00", "7:05", "12-30"} {
		_, err := checkTime(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}

	for _, in := range []string{"a@b", "@b.com", "a b@c.de", "a@b.c"} {
		_, err := checkEmail(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
	_, err = checkEmail(ctx, "first.last+tag@studio.com.ua")
	assert.NoError(t, err)

	_, err = checkText(5)(ctx, "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "err.required", verr.Key)
	_, err = checkText(5)(ctx, "привіт!")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "err.too_long", verr.Key)
	assert.Equal(t, []any{5}, verr.Args)
	v, err = checkText(5)(ctx, "йога")
	require.NoError(t, err)
	assert.Equal(t, "йога", v)

	_, err = e.checkFutureDate(ctx, "2026-03-10")
	assert.ErrorIs(t, err, ErrValidation)
	v, err = e.checkFutureDate(ctx, "2026-03-11")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-11", v)
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "01.05.2026", DisplayDate("2026-05-01"))
	assert.Equal(t, "soon", DisplayDate("soon"))
}
