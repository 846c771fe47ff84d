package records

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltBackendThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "studio.db")
	b, err := OpenBolt(path)
	require.NoError(t, err)
	ctx := context.Background()

	s := NewStore(b, Options{})
	require.NoError(t, s.EnsureCollection(ctx, Content.Name, Content.Header))
	for i := 1; i <= 3; i++ {
		_, err := s.AppendWithID(ctx, Content.Name, func(id int) []string { return contentRow(id, "t") })
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteRow(ctx, Content.Name, 3))
	require.NoError(t, s.UpdateCell(ctx, Content.Name, 3, 2, "last"))
	require.NoError(t, s.Close())

	// Reopen to check durability and row order.
	b, err = OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()
	s = NewStore(b, Options{})

	recs, err := s.ListRecords(ctx, Content.Name)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Int("id"))
	assert.Equal(t, 3, recs[1].Int("id"))
	assert.Equal(t, "last", recs[1]["title"])

	id, err := s.NextID(ctx, Content.Name)
	require.NoError(t, err)
	assert.Equal(t, 4, id)
}
