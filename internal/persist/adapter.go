// Package persist mirrors store state into durable storage. Each store is
// saved as one versioned document under its own key. Writes happen in the
// background after every mutation; in-memory state is always ahead of
// storage until Flush returns.
package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/stats"
	"go.uber.org/zap"
)

type Adapter struct {
	log      *zap.Logger
	stats    stats.StatsProvider
	store    database.Store
	bindings []Binding
	queue    *writeQueue

	mu      sync.Mutex
	started bool
	unsubs  []func()
}

func NewAdapter(logger *zap.Logger, su stats.StatsProvider, s database.Store, bindings ...Binding) *Adapter {
	su.RegisterMetric(metricWrites)
	su.RegisterMetric(metricFailures)

	return &Adapter{
		log:      logger,
		stats:    su,
		store:    s,
		bindings: bindings,
		queue:    newWriteQueue(logger, su, s),
	}
}

// Load restores every bound store. Stores with nothing saved are seeded.
// It must run before Start.
func (a *Adapter) Load(ctx context.Context) error {
	var errs []error
	for _, b := range a.bindings {
		loaded, err := b.Load(ctx, a.store)
		if err != nil {
			a.log.Error("persist_load_failed", zap.String("key", b.Key()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !loaded {
			a.log.Info("persist_seeded", zap.String("key", b.Key()))
			b.Seed()
		}
	}
	return errors.Join(errs...)
}

// Start subscribes to every bound store and begins background writes.
func (a *Adapter) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	for _, b := range a.bindings {
		a.unsubs = append(a.unsubs, b.Subscribe(func() {
			a.save(b)
		}))
	}
	go a.queue.run()
}

func (a *Adapter) save(b Binding) {
	data, err := b.Encode()
	if err != nil {
		a.stats.Incr(metricFailures)
		a.log.Error("persist_encode_failed", zap.String("key", b.Key()), zap.Error(err))
		return
	}
	if !a.queue.enqueue(b.Key(), data) {
		a.log.Warn("persist_write_dropped", zap.String("key", b.Key()), zap.Error(ErrQueueClosed))
	}
}

// SaveAll queues a snapshot of every bound store.
func (a *Adapter) SaveAll() {
	for _, b := range a.bindings {
		a.save(b)
	}
}

// Pending lists keys with writes not yet handed to storage.
func (a *Adapter) Pending() []string {
	return a.queue.pendingKeys()
}

// Flush blocks until every write queued so far has been attempted.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return nil
	}
	return a.queue.flush(ctx)
}

// Keys lists every key the adapter may have written, current and legacy.
func (a *Adapter) Keys() []string {
	var keys []string
	for _, b := range a.bindings {
		keys = append(keys, b.Key())
		keys = append(keys, b.LegacyKeys()...)
	}
	return keys
}

// Reset deletes every current and legacy key, then reseeds all stores. The
// reseeded state is written back through the queue.
func (a *Adapter) Reset(ctx context.Context) error {
	dropped := a.queue.discard()
	if err := a.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			return &PersistenceError{Op: "reset", Key: "*", Err: err}
		}
		a.log.Warn("persist_reset_prior_failures", zap.Error(err))
	}
	keys := a.Keys()
	if err := a.store.Delete(ctx, keys...); err != nil {
		perr := &PersistenceError{Op: "reset", Key: "*", Err: err}
		a.stats.Incr(metricFailures)
		a.log.Error("persist_reset_failed", zap.Strings("keys", keys), zap.Error(err))
		return perr
	}
	a.log.Info("persist_reset", zap.Strings("keys", keys), zap.Int("dropped_writes", dropped))

	for _, b := range a.bindings {
		b.Seed()
	}
	return nil
}

// Close writes anything pending, stops the worker and closes storage.
func (a *Adapter) Close() error {
	a.mu.Lock()
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	started := a.started
	a.mu.Unlock()

	if started {
		a.queue.close()
	}
	return a.store.Close()
}
