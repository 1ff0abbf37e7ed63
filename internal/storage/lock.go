package storage

import (
	"path/filepath"
	"sync"
	"sync/atomic"
)

// writerLock provides non-blocking lock semantics using atomic operations
type writerLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking
func (l *writerLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the holder that successfully acquired it.
func (l *writerLock) Release() {
	l.state.Store(0)
}

// writerLocks holds one lock per index path opened in this process
var writerLocks sync.Map // map[string]*writerLock

// acquireWriter claims the single writer slot for path
func acquireWriter(path string) (release func(), ok bool) {
	key := lockKey(path)
	v, _ := writerLocks.LoadOrStore(key, &writerLock{})
	lock := v.(*writerLock)
	if !lock.TryAcquire() {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(lock.Release) }, true
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
