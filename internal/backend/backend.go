// Package backend defines the seam between the stores and a remote data
// service. Stores depend only on Backend; Memory is the in-process stand-in
// used in development and tests.
package backend

import (
	"context"
	"errors"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownRPC   = errors.New("unknown rpc")
	ErrNoObject     = errors.New("object not found")
)

// Row is one record as exchanged with the backend.
type Row map[string]any

// Event is delivered to channel subscribers.
type Event struct {
	Channel string
	Payload any
}

type Subscription struct {
	id      int
	channel string
}

func (s *Subscription) Channel() string {
	return s.channel
}

type Backend interface {
	Select(ctx context.Context, table string, match Row) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, match, patch Row) (int, error)
	Delete(ctx context.Context, table string, match Row) (int, error)

	RPC(ctx context.Context, fn string, args Row) (any, error)

	Upload(ctx context.Context, bucket, path string, data []byte) error
	PublicURL(bucket, path string) string

	Subscribe(channel string, fn func(Event)) *Subscription
	Unsubscribe(sub *Subscription)
	Publish(ctx context.Context, channel string, payload any) error
}
