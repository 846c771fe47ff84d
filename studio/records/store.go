package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/studiobot/core/logger"
)

// DefaultTimeout bounds a single backend call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Record is one data row keyed by header field.
type Record map[string]string

// Int parses field as an integer, returning 0 when it is empty or malformed.
func (r Record) Int(field string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r[field]))
	return n
}

// Options tunes the Store.
type Options struct {
	Timeout time.Duration
}

// Store is the typed access layer over a Backend. It owns collection
// headers and is the only writer of persisted records.
type Store struct {
	backend Backend
	timeout time.Duration

	mu        sync.Mutex
	headers   map[string][]string
	locks     map[string]*sync.Mutex
	highWater map[string]int
}

// NewStore wraps backend.
func NewStore(backend Backend, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Store{
		backend:   backend,
		timeout:   opts.Timeout,
		headers:   make(map[string][]string),
		locks:     make(map[string]*sync.Mutex),
		highWater: make(map[string]int),
	}
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) call(ctx context.Context, op, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		err = fmt.Errorf("%w: %s timed out: %w", ErrUnavailable, op, err)
	}
	if logger.ShouldSampleDebug() || err != nil {
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
		}
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.String("op", op),
			slog.String("collection", name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		logger.LogEvent(ctx, logger.Store, level, "store.call", attrs...)
	}
	return err
}

// EnsureCollection creates the collection with header when it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, header []string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty collection name", ErrUnavailable)
	}
	err := s.call(ctx, "ensure", name, func(ctx context.Context) error {
		return s.backend.EnsureSheet(ctx, name, header)
	})
	if err != nil {
		return fmt.Errorf("ensure %s: %w", name, err)
	}
	s.mu.Lock()
	s.headers[name] = append([]string(nil), header...)
	s.mu.Unlock()
	return nil
}

func (s *Store) rows(ctx context.Context, name string) ([][]string, error) {
	var rows [][]string
	err := s.call(ctx, "rows", name, func(ctx context.Context) error {
		var err error
		rows, err = s.backend.Rows(ctx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) > 0 {
		s.mu.Lock()
		if _, ok := s.headers[name]; !ok {
			s.headers[name] = append([]string(nil), rows[0]...)
		}
		s.mu.Unlock()
	}
	return rows, nil
}

func (s *Store) header(ctx context.Context, name string) ([]string, error) {
	s.mu.Lock()
	h, ok := s.headers[name]
	s.mu.Unlock()
	if ok {
		return h, nil
	}
	rows, err := s.rows(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: collection %s has no header", ErrNotFound, name)
	}
	return rows[0], nil
}

// ListRecords returns every data row keyed by the header. Short rows are
// padded with empty values.
func (s *Store) ListRecords(ctx context.Context, name string) ([]Record, error) {
	rows, err := s.rows(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, max(len(rows)-1, 0))
	if len(rows) < 2 {
		return out, nil
	}
	header := rows[0]
	for _, row := range rows[1:] {
		rec := make(Record, len(header))
		for i, field := range header {
			if i < len(row) {
				rec[field] = row[i]
			} else {
				rec[field] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// SortedRecords lists the collection ordered by less. The sort is stable so
// rows comparing equal keep their physical order.
func (s *Store) SortedRecords(ctx context.Context, name string, less func(a, b Record) bool) ([]Record, error) {
	recs, err := s.ListRecords(ctx, name)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
	return recs, nil
}

// AppendRecord appends values positionally. A write conflict is retried once.
func (s *Store) AppendRecord(ctx context.Context, name string, values []string) error {
	header, err := s.header(ctx, name)
	if err != nil {
		return err
	}
	if len(values) != len(header) {
		return fmt.Errorf("%w: %s expects %d values, got %d", ErrColumnCount, name, len(header), len(values))
	}
	appendOnce := func() error {
		return s.call(ctx, "append", name, func(ctx context.Context) error {
			return s.backend.AppendRow(ctx, name, values)
		})
	}
	err = appendOnce()
	if errors.Is(err, ErrWriteConflict) {
		logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.append.retry",
			slog.String("collection", name),
			slog.Int("attempts", 2),
		)
		err = appendOnce()
	}
	if err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}

func (s *Store) checkRow(ctx context.Context, name string, row int) ([][]string, error) {
	rows, err := s.rows(ctx, name)
	if err != nil {
		return nil, err
	}
	if row < 2 || row > len(rows) {
		return nil, fmt.Errorf("%w: %s row %d", ErrNotFound, name, row)
	}
	return rows, nil
}

// UpdateCell overwrites one data cell. The header row is read-only.
func (s *Store) UpdateCell(ctx context.Context, name string, row, col int, value string) error {
	rows, err := s.checkRow(ctx, name, row)
	if err != nil {
		return err
	}
	if col < 1 || col > len(rows[0]) {
		return fmt.Errorf("%w: %s column %d", ErrNotFound, name, col)
	}
	err = s.call(ctx, "update", name, func(ctx context.Context) error {
		return s.backend.UpdateCell(ctx, name, row, col, value)
	})
	if err != nil {
		return fmt.Errorf("update %s!%d:%d: %w", name, row, col, err)
	}
	return nil
}

// DeleteRow removes a data row; later rows shift up.
func (s *Store) DeleteRow(ctx context.Context, name string, row int) error {
	if _, err := s.checkRow(ctx, name, row); err != nil {
		return err
	}
	err := s.call(ctx, "delete", name, func(ctx context.Context) error {
		return s.backend.DeleteRow(ctx, name, row)
	})
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", name, row, err)
	}
	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.row.deleted",
		slog.String("collection", name),
		slog.Int("row", row),
	)
	return nil
}

// FindRowByValue returns the first row (header-inclusive index) whose column
// col equals value.
func (s *Store) FindRowByValue(ctx context.Context, name string, col int, value string) (int, error) {
	rows, err := s.rows(ctx, name)
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(rows); i++ {
		if col >= 1 && col <= len(rows[i]) && rows[i][col-1] == value {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no %q in column %d", ErrNotFound, name, value, col)
}

// NextID returns one past the largest integer id in column 1, or 1.
func (s *Store) NextID(ctx context.Context, name string) (int, error) {
	rows, err := s.rows(ctx, name)
	if err != nil {
		return 0, err
	}
	return maxID(rows) + 1, nil
}

func maxID(rows [][]string) int {
	highest := 0
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) == 0 {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(rows[i][0])); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

func (s *Store) collectionLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// AppendWithID allocates the next id and appends build(id) while holding
// the collection lock, so concurrent commits never share an id. Ids handed
// out earlier in this process are never reissued, even when their rows have
// since been deleted.
func (s *Store) AppendWithID(ctx context.Context, name string, build func(id int) []string) (int, error) {
	l := s.collectionLock(name)
	l.Lock()
	defer l.Unlock()

	id, err := s.NextID(ctx, name)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if hw := s.highWater[name]; id <= hw {
		id = hw + 1
	}
	s.mu.Unlock()

	if err := s.AppendRecord(ctx, name, build(id)); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.highWater[name] = id
	s.mu.Unlock()

	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.record.appended",
		slog.String("collection", name),
		slog.Int("record_id", id),
	)
	return id, nil
}
