// Package lock implements an exclusive lock in a kv store using
// compare-and-swap semantics.
package lock

import (
	"errors"
	"fmt"

	"github.com/mistifyio/chainnet/pkg/kv"
)

// ErrLockNotHeld signifies an attempt to operate on a released/lost lock
var ErrLockNotHeld = errors.New("lock not held")

// HeldError is returned when another holder already has the lock
type HeldError struct {
	Key    string
	Holder string
}

// Error returns a string error message
func (e *HeldError) Error() string {
	return fmt.Sprintf("lock %s held by %s", e.Key, e.Holder)
}

// Lock is a lock in a kv store
type Lock struct {
	store kv.KV
	key   string
	value string
	index uint64
	held  bool
}

// Acquire attempts to take the lock at key, storing value to identify the
// holder. It does not wait: if the key already exists a *HeldError is
// returned.
func Acquire(store kv.KV, key, value string) (*Lock, error) {
	index, err := store.Update(key, kv.Value{Data: []byte(value)})
	if err != nil {
		if current, gerr := store.Get(key); gerr == nil {
			return nil, &HeldError{Key: key, Holder: string(current.Data)}
		}
		return nil, err
	}

	return &Lock{
		store: store,
		key:   key,
		value: value,
		index: index,
		held:  true,
	}, nil
}

// Held reports whether the lock is still held by this Lock
func (l *Lock) Held() bool {
	return l.held
}

// Release will release the lock and delete the key
func (l *Lock) Release() error {
	if !l.held {
		return ErrLockNotHeld
	}
	l.held = false
	return l.store.Remove(l.key, l.index)
}

// Break deletes the lock at key regardless of who holds it. It is meant for
// clearing locks left behind by a crashed holder.
func Break(store kv.KV, key string) error {
	err := store.Delete(key, false)
	if err != nil && store.IsKeyNotFound(err) {
		return nil
	}
	return err
}
