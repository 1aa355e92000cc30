// Package kv abstracts the key value stores chainnet keeps its job history and
// network locks in. Implementations register a URL scheme and are selected with
// New.
package kv

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
)

// Value is the data stored at a key along with the index it was last modified at
type Value struct {
	Data  []byte
	Index uint64
}

var register = struct {
	sync.RWMutex
	kvs map[string]func(string) (KV, error)
}{
	kvs: map[string]func(string) (KV, error){},
}

// Register is called by KV implementors to register their scheme to be used
// with New
func Register(scheme string, fn func(string) (KV, error)) {
	register.Lock()
	defer register.Unlock()

	if _, dup := register.kvs[scheme]; dup {
		panic("kv: Register called twice for " + scheme)
	}
	register.kvs[scheme] = fn
}

// Schemes lists the registered schemes
func Schemes() []string {
	register.RLock()
	defer register.RUnlock()

	schemes := make([]string, 0, len(register.kvs))
	for scheme := range register.kvs {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// New returns the KV implementation registered for the scheme of addr, e.g.
// etcd://127.0.0.1:4001 or consul://127.0.0.1:8500.
func New(addr string) (KV, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	register.RLock()
	fn := register.kvs[u.Scheme]
	register.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("unknown kv store %q (forgotten import?)", u.Scheme)
	}
	return fn(addr)
}

// KV is the interface for key value store interaction
type KV interface {
	Delete(string, bool) error
	Get(string) (Value, error)
	GetAll(string) (map[string]Value, error)

	// Atomic operations
	// Update will set key=value while ensuring that newer values are not
	// clobbered. An Index of 0 only succeeds if the key does not exist.
	Update(string, Value) (uint64, error)
	// Remove will delete key only if it has not been modified since index
	Remove(string, uint64) error

	// IsKeyNotFound is a helper to determine if the error is a key not found error
	IsKeyNotFound(error) bool

	// Ping verifies the store is reachable
	Ping() error
}
