package records

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *Memory) {
	t.Helper()
	mem := NewMemory()
	s := NewStore(mem, Options{Timeout: time.Second})
	for _, c := range All() {
		require.NoError(t, s.EnsureCollection(context.Background(), c.Name, c.Header))
	}
	return s, mem
}

func contentRow(id int, title string) []string {
	return []string{strconv.Itoa(id), title, "desc", "body", "42"}
}

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendRecord(ctx, Content.Name, contentRow(1, "a")))
	require.NoError(t, s.EnsureCollection(ctx, Content.Name, []string{"other"}))

	recs, err := s.ListRecords(ctx, Content.Name)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0]["title"])
}

func TestListRecordsEmptyCollection(t *testing.T) {
	s, _ := newTestStore(t)
	recs, err := s.ListRecords(context.Background(), Events.Name)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestListRecordsPadsShortRows(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, mem.AppendRow(ctx, Schedule.Name, []string{"Mon", "18:00"}))

	recs, err := s.ListRecords(ctx, Schedule.Name)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Mon", recs[0]["day"])
	assert.Equal(t, "", recs[0]["notes"])
	assert.Len(t, recs[0], Schedule.Width())
}

func TestAppendRecordRejectsWrongWidth(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.AppendRecord(context.Background(), Content.Name, []string{"1", "only two"})
	assert.ErrorIs(t, err, ErrColumnCount)
}

func TestAppendRecordRetriesConflictOnce(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	calls := 0
	mem.FailAppend = func(string) error {
		calls++
		if calls == 1 {
			return ErrWriteConflict
		}
		return nil
	}
	require.NoError(t, s.AppendRecord(ctx, Content.Name, contentRow(1, "a")))
	assert.Equal(t, 2, calls)

	calls = 0
	mem.FailAppend = func(string) error {
		calls++
		return fmt.Errorf("busy: %w", ErrWriteConflict)
	}
	err := s.AppendRecord(ctx, Content.Name, contentRow(2, "b"))
	assert.ErrorIs(t, err, ErrWriteConflict)
	assert.Equal(t, 2, calls)
}

func TestNextIDIgnoresMalformedCells(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	id, err := s.NextID(ctx, Events.Name)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	for _, raw := range []string{"3", "abc", "", " 7 ", "-2", "5.5"} {
		require.NoError(t, mem.AppendRow(ctx, Content.Name, []string{raw, "t", "d", "c", "1"}))
	}
	id, err = s.NextID(ctx, Content.Name)
	require.NoError(t, err)
	assert.Equal(t, 8, id)
}

func TestUpdateAndDeleteRows(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.AppendRecord(ctx, Content.Name, contentRow(i, "t"+strconv.Itoa(i))))
	}

	require.NoError(t, s.UpdateCell(ctx, Content.Name, 3, 2, "renamed"))
	row, err := s.FindRowByValue(ctx, Content.Name, 2, "renamed")
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	require.NoError(t, s.DeleteRow(ctx, Content.Name, 2))
	recs, err := s.ListRecords(ctx, Content.Name)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "renamed", recs[0]["title"])
	assert.Equal(t, "t3", recs[1]["title"])

	assert.ErrorIs(t, s.DeleteRow(ctx, Content.Name, 1), ErrNotFound)
	assert.ErrorIs(t, s.DeleteRow(ctx, Content.Name, 9), ErrNotFound)
	assert.ErrorIs(t, s.UpdateCell(ctx, Content.Name, 2, 99, "x"), ErrNotFound)

	_, err = s.FindRowByValue(ctx, Content.Name, 2, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSortedRecords(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i, title := range []string{"b", "c", "a"} {
		require.NoError(t, s.AppendRecord(ctx, Content.Name, contentRow(i+1, title)))
	}
	recs, err := s.SortedRecords(ctx, Content.Name, func(a, b Record) bool { return a["title"] < b["title"] })
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{recs[0]["title"], recs[1]["title"], recs[2]["title"]})
	assert.Equal(t, 3, recs[0].Int("id"))
}

func TestAppendWithIDSerializesConcurrentCommits(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.AppendRecord(ctx, Content.Name, contentRow(i, "seed")))
	}

	const writers = 20
	ids := make([]int, writers)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id, err := s.AppendWithID(ctx, Content.Name, func(id int) []string { return contentRow(id, "new") })
			assert.NoError(t, err)
			ids[w] = id
		}(w)
	}
	wg.Wait()

	seen := make(map[int]bool, writers)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.GreaterOrEqual(t, id, 6)
		assert.LessOrEqual(t, id, 5+writers)
	}
}

func TestAppendWithIDNeverReusesDeletedIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	build := func(id int) []string { return contentRow(id, "x") }

	id, err := s.AppendWithID(ctx, Content.Name, build)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	require.NoError(t, s.DeleteRow(ctx, Content.Name, 2))
	id, err = s.AppendWithID(ctx, Content.Name, build)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

type stallingBackend struct{ *Memory }

func (b stallingBackend) Rows(ctx context.Context, _ string) ([][]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBackendCallsAreBounded(t *testing.T) {
	s := NewStore(stallingBackend{NewMemory()}, Options{Timeout: 20 * time.Millisecond})
	_, err := s.ListRecords(context.Background(), Events.Name)
	assert.ErrorIs(t, err, ErrUnavailable)
}
