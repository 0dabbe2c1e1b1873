package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RPCFunc func(ctx context.Context, args Row) (any, error)

// Memory satisfies Backend entirely in process. Inserted rows get a uuid
// "id" unless they carry one.
type Memory struct {
	log *zap.Logger

	mu      sync.RWMutex
	tables  map[string][]Row
	objects map[string][]byte
	rpcs    map[string]RPCFunc

	subsMu sync.RWMutex
	nextId int
	subs   map[string]map[int]func(Event)
}

func NewMemory(logger *zap.Logger, tables ...string) *Memory {
	m := &Memory{
		log:     logger,
		tables:  make(map[string][]Row),
		objects: make(map[string][]byte),
		rpcs:    make(map[string]RPCFunc),
		subs:    make(map[string]map[int]func(Event)),
	}
	for _, t := range tables {
		m.tables[t] = nil
	}
	return m
}

func (m *Memory) RegisterRPC(name string, fn RPCFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rpcs[name] = fn
}

func matches(r, match Row) bool {
	for k, v := range match {
		if r[k] != v {
			return false
		}
	}
	return true
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (m *Memory) Select(ctx context.Context, table string, match Row) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("select %s: %w", table, ErrUnknownTable)
	}
	var out []Row
	for _, r := range rows {
		if matches(r, match) {
			out = append(out, cloneRow(r))
		}
	}
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[table]; !ok {
		return nil, fmt.Errorf("insert %s: %w", table, ErrUnknownTable)
	}
	r := cloneRow(row)
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	m.tables[table] = append(m.tables[table], r)
	m.log.Debug("backend_insert", zap.String("table", table), zap.Any("id", r["id"]))
	return cloneRow(r), nil
}

func (m *Memory) Update(ctx context.Context, table string, match, patch Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("update %s: %w", table, ErrUnknownTable)
	}
	n := 0
	for _, r := range rows {
		if !matches(r, match) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) Delete(ctx context.Context, table string, match Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.tables[table]
	if !ok {
		return 0, fmt.Errorf("delete %s: %w", table, ErrUnknownTable)
	}
	kept := rows[:0]
	for _, r := range rows {
		if !matches(r, match) {
			kept = append(kept, r)
		}
	}
	n := len(rows) - len(kept)
	m.tables[table] = kept
	return n, nil
}

func (m *Memory) RPC(ctx context.Context, fn string, args Row) (any, error) {
	m.mu.RLock()
	f, ok := m.rpcs[fn]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("rpc %s: %w", fn, ErrUnknownRPC)
	}
	return f(ctx, args)
}

func objectKey(bucket, path string) string {
	return bucket + "/" + path
}

func (m *Memory) Upload(ctx context.Context, bucket, path string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[objectKey(bucket, path)] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Object(bucket, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[objectKey(bucket, path)]
	if !ok {
		return nil, ErrNoObject
	}
	return b, nil
}

func (m *Memory) PublicURL(bucket, path string) string {
	return "memory://" + objectKey(bucket, path)
}

func (m *Memory) Subscribe(channel string, fn func(Event)) *Subscription {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	if m.subs[channel] == nil {
		m.subs[channel] = make(map[int]func(Event))
	}
	m.nextId++
	m.subs[channel][m.nextId] = fn
	return &Subscription{id: m.nextId, channel: channel}
}

func (m *Memory) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	delete(m.subs[sub.channel], sub.id)
	if len(m.subs[sub.channel]) == 0 {
		delete(m.subs, sub.channel)
	}
}

// Publish delivers synchronously to every current subscriber of channel.
func (m *Memory) Publish(ctx context.Context, channel string, payload any) error {
	m.subsMu.RLock()
	fns := make([]func(Event), 0, len(m.subs[channel]))
	for _, fn := range m.subs[channel] {
		fns = append(fns, fn)
	}
	m.subsMu.RUnlock()

	ev := Event{Channel: channel, Payload: payload}
	for _, fn := range fns {
		fn(ev)
	}
	return nil
}
