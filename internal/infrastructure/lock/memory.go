package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker locks keys within one process. Each key maps to a one-slot
// channel; holding the lock means owning the slot.
type MemoryLocker struct {
	opts Options
	mu   sync.Mutex
	keys map[string]*memoryKey
}

type memoryKey struct {
	slot    chan struct{}
	waiters int
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker(opts Options) *MemoryLocker {
	return &MemoryLocker{
		opts: opts.withDefaults(),
		keys: make(map[string]*memoryKey),
	}
}

// Acquire tries the key, backing off between attempts. It gives up with a
// conflict error after opts.Retries retries or when ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.ref(key)
	for attempt := 0; ; attempt++ {
		select {
		case k.slot <- struct{}{}:
			var once sync.Once
			return func() {
				once.Do(func() {
					<-k.slot
					l.unref(key)
				})
			}, nil
		default:
		}
		if attempt >= l.opts.Retries {
			l.unref(key)
			return nil, busy(key)
		}
		timer := time.NewTimer(l.opts.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			l.unref(key)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Held reports whether key is currently locked.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[key]
	return ok && len(k.slot) == 1
}

func (l *MemoryLocker) ref(key string) *memoryKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[key]
	if !ok {
		k = &memoryKey{slot: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.waiters++
	return k
}

// unref drops the entry once nobody holds or waits for the key.
func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[key]
	if !ok {
		return
	}
	k.waiters--
	if k.waiters <= 0 {
		delete(l.keys, key)
	}
}
