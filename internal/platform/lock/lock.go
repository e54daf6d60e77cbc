// Package lock provides short-lived exclusive locks keyed by string. Holders
// receive a token and only the matching token releases the lock.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotHeld is returned by Unlock when the token no longer owns the key.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires and releases exclusive locks.
type Locker interface {
	// TryLock returns ok=false without error when the key is already held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ---------------------------------------------------------------------------
// In-memory locker
// ---------------------------------------------------------------------------

type heldLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]heldLock), now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = heldLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok || held.token != token || !l.now().Before(held.expires) {
		return ErrNotHeld
	}
	delete(l.locks, key)
	return nil
}
