package docstore

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

type pebbleBackend struct {
	db *pebble.DB
}

func openPebble(dir string) (*pebbleBackend, error) {
	opts := &pebble.Options{
		MemTableSize:          64 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}
	db, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &pebbleBackend{db: db}, nil
}

// begin uses an indexed batch: reads see the batch's own writes and the
// whole batch lands atomically on commit.
func (p *pebbleBackend) begin() txn   { return &pebbleTxn{b: p.db.NewIndexedBatch()} }
func (p *pebbleBackend) close() error { return p.db.Close() }

type pebbleTxn struct {
	b      *pebble.Batch
	closed bool
}

func (t *pebbleTxn) get(key string) ([]byte, error) {
	v, closer, err := t.b.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errNoKey
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (t *pebbleTxn) set(key string, val []byte) error {
	return t.b.Set([]byte(key), val, nil)
}

func (t *pebbleTxn) scan(prefix string, fn func(key string, val []byte) error) error {
	it, err := t.b.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := string(it.Key())
		v := append([]byte(nil), it.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return it.Error()
}

func (t *pebbleTxn) commit() error {
	if err := t.b.Commit(pebble.Sync); err != nil {
		return err
	}
	t.discard()
	return nil
}

func (t *pebbleTxn) discard() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.b.Close()
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
