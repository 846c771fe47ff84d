package records

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Backend for development and tests.
type Memory struct {
	mu     sync.Mutex
	sheets map[string][][]string

	// FailAppend, when set, is consulted before every append.
	FailAppend func(name string) error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]string)}
}

func (m *Memory) EnsureSheet(_ context.Context, name string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; !ok {
		m.sheets[name] = [][]string{append([]string(nil), header...)}
	}
	return nil
}

func (m *Memory) sheet(name string) ([][]string, error) {
	rows, ok := m.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %s", ErrNotFound, name)
	}
	return rows, nil
}

func (m *Memory) Rows(_ context.Context, name string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.sheet(name)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *Memory) AppendRow(_ context.Context, name string, values []string) error {
	if m.FailAppend != nil {
		if err := m.FailAppend(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.sheet(name)
	if err != nil {
		return err
	}
	m.sheets[name] = append(rows, append([]string(nil), values...))
	return nil
}

func (m *Memory) UpdateCell(_ context.Context, name string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.sheet(name)
	if err != nil {
		return err
	}
	if row < 1 || row > len(rows) || col < 1 {
		return fmt.Errorf("%w: %s!%d:%d", ErrNotFound, name, row, col)
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	rows[row-1] = r
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, name string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, err := m.sheet(name)
	if err != nil {
		return err
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("%w: %s row %d", ErrNotFound, name, row)
	}
	m.sheets[name] = append(rows[:row-1], rows[row:]...)
	return nil
}

func (m *Memory) Close() error { return nil }
