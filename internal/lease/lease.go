// Package lease provides per-key mutual exclusion for work that must not run
// twice at once, such as regenerating a summary.
package lease

import (
	"context"
	"sync"
)

// Locker hands out exclusive leases on keys without blocking.
type Locker interface {
	// TryAcquire takes the lease for key. When acquired is false another holder
	// owns it and release is nil.
	TryAcquire(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// LocalLocker holds leases in process memory.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryAcquire implements Locker.
func (l *LocalLocker) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// NopLocker grants every lease.
type NopLocker struct{}

// TryAcquire implements Locker.
func (NopLocker) TryAcquire(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}
