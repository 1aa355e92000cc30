// Package mem is an in-process kv store, registered as the mem scheme. Its
// contents live as long as the process.
package mem

import (
	"errors"
	"strings"
	"sync"

	"github.com/mistifyio/chainnet/pkg/kv"
)

var (
	// ErrKeyNotFound is returned for operations on a missing key
	ErrKeyNotFound = errors.New("key not found")
	// ErrIndexMismatch is returned when an atomic operation sees a newer value
	ErrIndexMismatch = errors.New("index mismatch")
	// ErrKeyExists is returned when creating a key that already exists
	ErrKeyExists = errors.New("key exists")
)

func init() {
	kv.Register("mem", func(string) (kv.KV, error) {
		return New(), nil
	})
}

type mkv struct {
	mu     sync.Mutex
	index  uint64
	values map[string]kv.Value
}

// New creates an empty store
func New() kv.KV {
	return &mkv{values: map[string]kv.Value{}}
}

func clean(key string) string {
	return strings.Trim(key, "/")
}

func under(key, prefix string) bool {
	return prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/")
}

func (m *mkv) Delete(key string, recurse bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = clean(key)
	if !recurse {
		if _, ok := m.values[key]; !ok {
			return ErrKeyNotFound
		}
		delete(m.values, key)
		return nil
	}

	for k := range m.values {
		if under(k, key) {
			delete(m.values, k)
		}
	}
	return nil
}

func (m *mkv) Get(key string) (kv.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[clean(key)]
	if !ok {
		return kv.Value{}, ErrKeyNotFound
	}
	return v, nil
}

func (m *mkv) GetAll(prefix string) (map[string]kv.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix = clean(prefix)
	many := map[string]kv.Value{}
	for k, v := range m.values {
		if under(k, prefix) {
			many[k] = v
		}
	}
	if len(many) == 0 {
		return nil, ErrKeyNotFound
	}
	return many, nil
}

func (m *mkv) Update(key string, value kv.Value) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = clean(key)
	current, ok := m.values[key]
	switch {
	case value.Index == 0 && ok:
		return 0, ErrKeyExists
	case value.Index != 0 && !ok:
		return 0, ErrKeyNotFound
	case value.Index != 0 && current.Index != value.Index:
		return 0, ErrIndexMismatch
	}

	m.index++
	data := make([]byte, len(value.Data))
	copy(data, value.Data)
	m.values[key] = kv.Value{Data: data, Index: m.index}
	return m.index, nil
}

func (m *mkv) Remove(key string, index uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = clean(key)
	current, ok := m.values[key]
	if !ok {
		return ErrKeyNotFound
	}
	if current.Index != index {
		return ErrIndexMismatch
	}
	delete(m.values, key)
	return nil
}

func (m *mkv) IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

func (m *mkv) Ping() error {
	return nil
}
