package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brayobiz/campus-hub-sub000/internal/observability"
)

var storeLog = observability.NewComponentLogger("store")

// Persisted holds one nullable value that is loaded once from KV and written
// through to KV on every change.
//
// Writes are serialized: the in-memory value and the persisted copy are
// updated in the same critical section, so the last call wins in both.
// Subscribers are notified in write order and must not write to the same
// store synchronously from the callback.
type Persisted[T any] struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	kv       KV
	key      string
	value    *T
	gen      uint64

	loadOnce sync.Once
	loaded   chan struct{}

	subs    map[int]func(*T)
	nextSub int
}

func newPersisted[T any](kv KV, key string) *Persisted[T] {
	return &Persisted[T]{
		kv:     kv,
		key:    key,
		loaded: make(chan struct{}),
		subs:   make(map[int]func(*T)),
	}
}

// Key returns the storage key.
func (p *Persisted[T]) Key() string { return p.key }

// Load reads the saved value once. A read or decode failure leaves the store
// empty; it is logged and returned but the store still reports loaded.
// A write that happened before Load finished is never overwritten.
func (p *Persisted[T]) Load(ctx context.Context) error {
	var loadErr error
	p.loadOnce.Do(func() {
		defer close(p.loaded)

		raw, ok, err := p.kv.Get(ctx, p.key)
		if err != nil {
			loadErr = fmt.Errorf("load %s: %w", p.key, err)
			storeLog.Error(ctx, "store hydration failed", err, map[string]any{"key": p.key})
			return
		}
		if !ok {
			return
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			loadErr = fmt.Errorf("decode %s: %w", p.key, err)
			storeLog.Error(ctx, "stored value is corrupt, ignoring", err, map[string]any{"key": p.key})
			return
		}

		p.mu.Lock()
		if p.gen != 0 {
			p.mu.Unlock()
			return
		}
		p.value = &v
		p.notifyLocked()
	})
	return loadErr
}

// Loaded is closed once Load has finished.
func (p *Persisted[T]) Loaded() <-chan struct{} { return p.loaded }

// Get returns a copy of the current value or nil.
func (p *Persisted[T]) Get() *T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.value == nil {
		return nil
	}
	v := *p.value
	return &v
}

// Generation increases on every write. Async flows capture it before they
// start and commit with SetIfGeneration.
func (p *Persisted[T]) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Set replaces the value and persists it.
func (p *Persisted[T]) Set(ctx context.Context, v T) error {
	p.mu.Lock()
	return p.writeLocked(ctx, &v)
}

// Clear empties the value and removes it from storage.
func (p *Persisted[T]) Clear(ctx context.Context) error {
	p.mu.Lock()
	return p.writeLocked(ctx, nil)
}

// SetIfGeneration writes v only if no write happened since gen was observed.
// It reports whether the write was applied.
func (p *Persisted[T]) SetIfGeneration(ctx context.Context, gen uint64, v T) (bool, error) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return false, nil
	}
	return true, p.writeLocked(ctx, &v)
}

// Subscribe registers fn to run after every change. The returned func removes it.
func (p *Persisted[T]) Subscribe(fn func(*T)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// writeLocked must be called with p.mu held; it releases it.
func (p *Persisted[T]) writeLocked(ctx context.Context, v *T) error {
	p.gen++
	p.value = v

	var err error
	if v == nil {
		err = p.kv.Delete(ctx, p.key)
	} else {
		var raw []byte
		raw, err = json.Marshal(v)
		if err == nil {
			err = p.kv.Set(ctx, p.key, string(raw))
		}
	}
	if err != nil {
		err = fmt.Errorf("persist %s: %w", p.key, err)
		storeLog.Error(ctx, "store persistence failed", err, map[string]any{"key": p.key})
	}
	p.notifyLocked()
	return err
}

// notifyLocked hands the lock over to notifyMu so callbacks run in write order
// without holding p.mu.
func (p *Persisted[T]) notifyLocked() {
	var snapshot *T
	if p.value != nil {
		v := *p.value
		snapshot = &v
	}
	subs := make([]func(*T), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.notifyMu.Lock()
	p.mu.Unlock()
	defer p.notifyMu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}
