package docstore

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var errNoKey = errors.New("key not found")

// backend is a transactional key/value space. Writers are serialized by
// Store, so a txn only has to provide atomic commit and read-your-writes.
type backend interface {
	begin() txn
	close() error
}

type txn interface {
	get(key string) ([]byte, error)
	set(key string, val []byte) error
	scan(prefix string, fn func(key string, val []byte) error) error
	commit() error
	discard()
}

type memBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemBackend() *memBackend { return &memBackend{data: map[string][]byte{}} }

func (b *memBackend) begin() txn   { return &memTxn{b: b, writes: map[string][]byte{}} }
func (b *memBackend) close() error { return nil }

type memTxn struct {
	b      *memBackend
	writes map[string][]byte
}

func (t *memTxn) get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		return v, nil
	}
	t.b.mu.RLock()
	defer t.b.mu.RUnlock()
	v, ok := t.b.data[key]
	if !ok {
		return nil, errNoKey
	}
	return v, nil
}

func (t *memTxn) set(key string, val []byte) error {
	t.writes[key] = append([]byte(nil), val...)
	return nil
}

func (t *memTxn) scan(prefix string, fn func(key string, val []byte) error) error {
	merged := map[string][]byte{}
	t.b.mu.RLock()
	for k, v := range t.b.data {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	t.b.mu.RUnlock()
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, merged[k]); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTxn) commit() error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	for k, v := range t.writes {
		t.b.data[k] = v
	}
	t.writes = map[string][]byte{}
	return nil
}

func (t *memTxn) discard() { t.writes = nil }
