package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/stats"
	"go.uber.org/zap"
)

const (
	metricWrites   = "persist_writes"
	metricFailures = "persist_failures"

	maxRememberedFailures = 16
)

var ErrQueueClosed = errors.New("write queue closed")

// writeQueue holds the newest pending snapshot per key and writes them from
// a single worker. Anything still pending when the process dies is lost.
type writeQueue struct {
	log   *zap.Logger
	stats stats.StatsProvider
	store database.Store

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	waiters []chan error
	failed  []error
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newWriteQueue(logger *zap.Logger, su stats.StatsProvider, s database.Store) *writeQueue {
	return &writeQueue{
		log:     logger,
		stats:   su,
		store:   s,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// enqueue replaces any pending snapshot for key. It never blocks on I/O.
func (q *writeQueue) enqueue(key string, value []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.pending[key]; !ok {
		q.order = append(q.order, key)
	}
	q.pending[key] = value
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *writeQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// discard drops pending writes without touching storage.
func (q *writeQueue) discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.order)
	q.pending = make(map[string][]byte)
	q.order = nil
	return n
}

func (q *writeQueue) pendingKeys() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.order...)
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.wake:
			q.drain()
		case <-q.stop:
			q.drain()
			return
		}
	}
}

func (q *writeQueue) drain() {
	q.mu.Lock()
	batch, order, waiters := q.pending, q.order, q.waiters
	q.pending = make(map[string][]byte)
	q.order = nil
	q.waiters = nil
	q.mu.Unlock()

	var errs []error
	for _, key := range order {
		if err := q.store.Set(context.Background(), key, batch[key]); err != nil {
			perr := &PersistenceError{Op: "write", Key: key, Err: err}
			q.stats.Incr(metricFailures)
			q.log.Error("persist_write_failed", zap.String("key", key), zap.Error(err))
			errs = append(errs, perr)
			continue
		}
		q.stats.Incr(metricWrites)
		q.log.Debug("persist_write", zap.String("key", key), zap.Int("bytes", len(batch[key])))
	}

	q.mu.Lock()
	q.failed = append(q.failed, errs...)
	if len(q.failed) > maxRememberedFailures {
		q.failed = q.failed[len(q.failed)-maxRememberedFailures:]
	}
	var err error
	if len(waiters) > 0 {
		err = errors.Join(q.failed...)
		q.failed = nil
	}
	q.mu.Unlock()

	for _, w := range waiters {
		w <- err
	}
}

// flush waits until everything enqueued so far has been attempted and
// returns the write failures seen since the previous flush.
func (q *writeQueue) flush(ctx context.Context) error {
	ch := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()
	q.signal()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting writes, writes what is pending and stops the worker.
func (q *writeQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	<-q.done
}
