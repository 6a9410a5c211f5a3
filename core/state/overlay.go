package state

import (
	"errors"
	"sort"
	"sync"

	"lendledger/storage"
)

// KV is the key-value surface the Manager reads and writes through. Both
// storage.Database and Overlay satisfy it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Overlay buffers writes on top of a database until Commit. Reads see the
// buffered writes first. A discarded overlay leaves the database untouched.
type Overlay struct {
	mu     sync.Mutex
	base   storage.Database
	writes map[string][]byte
}

// NewOverlay opens an empty write buffer over base.
func NewOverlay(base storage.Database) *Overlay {
	return &Overlay{base: base, writes: make(map[string][]byte)}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	value, ok := o.writes[string(key)]
	o.mu.Unlock()
	if ok {
		if value == nil {
			return nil, storage.ErrNotFound
		}
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	o.mu.Lock()
	o.writes[string(key)] = buf
	o.mu.Unlock()
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	o.writes[string(key)] = nil
	o.mu.Unlock()
	return nil
}

// Dirty reports how many keys are pending.
func (o *Overlay) Dirty() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.writes)
}

// Commit writes every buffered change to the database in one batch and
// clears the buffer. Keys are written in sorted order.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]storage.Op, 0, len(keys))
	for _, k := range keys {
		ops = append(ops, storage.Op{Key: []byte(k), Value: o.writes[k]})
	}
	if err := o.base.Write(ops); err != nil {
		return err
	}
	o.writes = make(map[string][]byte)
	return nil
}

// Discard drops every buffered change.
func (o *Overlay) Discard() {
	o.mu.Lock()
	o.writes = make(map[string][]byte)
	o.mu.Unlock()
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
