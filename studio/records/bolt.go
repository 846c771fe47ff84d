package records

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// headerKey holds the header row; data rows use NextSequence keys (>= 1),
// so cursor order equals insertion order.
var headerKey = itob(0)

// Bolt keeps each collection in its own bucket of a local bbolt file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, path, err)
	}
	return &Bolt{db: db}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (b *Bolt) EnsureSheet(ctx context.Context, name string, header []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			return nil
		}
		bkt, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		raw, err := json.Marshal(header)
		if err != nil {
			return err
		}
		return bkt.Put(headerKey, raw)
	})
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bkt := tx.Bucket([]byte(name))
	if bkt == nil {
		return nil, fmt.Errorf("%w: bucket %s", ErrNotFound, name)
	}
	return bkt, nil
}

func (b *Bolt) Rows(ctx context.Context, name string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows [][]string
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		return bkt.ForEach(func(_, v []byte) error {
			var row []string
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, row)
			return nil
		})
	})
	return rows, err
}

func (b *Bolt) AppendRow(ctx context.Context, name string, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		return bkt.Put(itob(seq), raw)
	})
}

// seek positions a cursor on the header-inclusive row index.
func seek(bkt *bolt.Bucket, name string, row int) ([]byte, []byte, error) {
	c := bkt.Cursor()
	i := 1
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if i == row {
			return k, v, nil
		}
		i++
	}
	return nil, nil, fmt.Errorf("%w: %s row %d", ErrNotFound, name, row)
}

func (b *Bolt) UpdateCell(ctx context.Context, name string, row, col int, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		k, v, err := seek(bkt, name, row)
		if err != nil {
			return err
		}
		var cells []string
		if err := json.Unmarshal(v, &cells); err != nil {
			return err
		}
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = value
		raw, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		return bkt.Put(k, raw)
	})
}

func (b *Bolt) DeleteRow(ctx context.Context, name string, row int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := bucket(tx, name)
		if err != nil {
			return err
		}
		k, _, err := seek(bkt, name, row)
		if err != nil {
			return err
		}
		return bkt.Delete(k)
	})
}

func (b *Bolt) Close() error { return b.db.Close() }
