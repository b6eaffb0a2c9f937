package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/abhisek/coursewell/internal/logging"
)

const (
	lockTTL       = 30 * time.Second
	lockPollEvery = 50 * time.Millisecond
)

// ErrLockLost is returned when another owner took the distributed lock
// while work was still running under it.
var ErrLockLost = errors.New("distributed lock lost")

// unlockScript deletes the lock only if we still own it.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only if we still own it.
var refreshScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker serializes work on one cursor key. Within a process it uses a
// reference-counted mutex per key; with a redis client it also takes a
// SET NX PX lock so replicas serialize too.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry

	client *backend.Client
	prefix string
	ttl    time.Duration
	log    *logging.Logger
}

// LockOption configures a distributed Locker.
type LockOption func(*Locker)

// WithLockTTL sets how long a distributed lock lives without a refresh.
// Held locks are refreshed every third of it.
func WithLockTTL(d time.Duration) LockOption {
	return func(l *Locker) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// NewLocker creates a process-local Locker.
func NewLocker(log *logging.Logger) *Locker {
	if log == nil {
		log = logging.Nop()
	}
	return &Locker{locks: make(map[string]*lockEntry), ttl: lockTTL, log: log}
}

// NewDistributedLocker creates a Locker that also locks in redis.
func NewDistributedLocker(client *backend.Client, prefix string, log *logging.Logger, opts ...LockOption) *Locker {
	l := NewLocker(log)
	l.client = client
	l.prefix = prefix
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.locks, key)
	}
}

// held reports how many callers hold or wait on key.
func (l *Locker) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[key]; ok {
		return e.refs
	}
	return 0
}

// WithLock runs fn while holding the lock for k. A distributed lock is
// kept alive for as long as fn runs; if it is lost anyway, fn's context is
// cancelled and WithLock returns ErrLockLost.
func (l *Locker) WithLock(ctx context.Context, k Key, fn func(context.Context) error) error {
	key := k.String()
	e := l.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		l.release(key)
	}()

	if l.client == nil {
		return fn(ctx)
	}

	lock, err := l.lockRemote(ctx, key)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		l.keepAlive(ctx, lock, done, cancel)
	}()

	err = fn(ctx)
	close(done)
	<-refreshed
	lost := errors.Is(context.Cause(ctx), ErrLockLost)
	cancel(nil)

	if rerr := lock.unlock(context.WithoutCancel(ctx)); rerr != nil && !lost {
		l.log.Warn("release distributed lock", "key", key, "error", rerr)
	}
	if lost {
		return fmt.Errorf("lock %s: %w", key, ErrLockLost)
	}
	return err
}

type remoteLock struct {
	client *backend.Client
	key    string
	token  string
	ttl    time.Duration
}

func (r remoteLock) refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, r.client, []string{r.key}, r.token, r.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (r remoteLock) unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, r.client, []string{r.key}, r.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// keepAlive refreshes lock until done is closed. Losing ownership cancels
// ctx with ErrLockLost. Transient redis errors are logged and retried on
// the next tick.
func (l *Locker) keepAlive(ctx context.Context, lock remoteLock, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(lock.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lock.refresh(context.WithoutCancel(ctx))
			if errors.Is(err, ErrLockLost) {
				l.log.Warn("distributed lock lost", "key", lock.key)
				cancel(ErrLockLost)
				return
			}
			if err != nil {
				l.log.Warn("refresh distributed lock", "key", lock.key, "error", err)
			}
		}
	}
}

func (l *Locker) lockRemote(ctx context.Context, key string) (remoteLock, error) {
	lock := remoteLock{
		client: l.client,
		key:    l.prefix + "lock:" + key,
		token:  uuid.NewString(),
		ttl:    l.ttl,
	}

	ticker := time.NewTicker(lockPollEvery)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lock.key, lock.token, lock.ttl).Result()
		if err != nil {
			return remoteLock{}, fmt.Errorf("acquire distributed lock: %w", err)
		}
		if ok {
			return lock, nil
		}

		select {
		case <-ctx.Done():
			return remoteLock{}, fmt.Errorf("acquire distributed lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
