package backend

import (
	"context"
	"testing"

	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(testutil.TestLogger(t), "messages")

	r, err := m.Insert(ctx, "messages", Row{"conversation_id": "c1", "content": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, r["id"], "expected generated id")

	_, err = m.Insert(ctx, "messages", Row{"id": "m2", "conversation_id": "c2", "content": "yo"})
	require.NoError(t, err)

	rows, err := m.Select(ctx, "messages", Row{"conversation_id": "c1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hi", rows[0]["content"])

	rows[0]["content"] = "changed"
	again, _ := m.Select(ctx, "messages", Row{"conversation_id": "c1"})
	assert.Equal(t, "hi", again[0]["content"], "expected select to return copies")

	n, err := m.Update(ctx, "messages", Row{"id": "m2"}, Row{"is_read": true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.Delete(ctx, "messages", Row{"conversation_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, _ := m.Select(ctx, "messages", nil)
	require.Len(t, all, 1)
	assert.Equal(t, true, all[0]["is_read"])

	_, err = m.Select(ctx, "nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = m.Insert(ctx, "nope", Row{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMemoryRPC(t *testing.T) {
	m := NewMemory(testutil.TestLogger(t))
	m.RegisterRPC("count", func(ctx context.Context, args Row) (any, error) {
		return len(args), nil
	})

	out, err := m.RPC(context.Background(), "count", Row{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out)

	_, err = m.RPC(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrUnknownRPC)
}

func TestMemoryObjects(t *testing.T) {
	m := NewMemory(testutil.TestLogger(t))
	data := []byte("jpeg")
	require.NoError(t, m.Upload(context.Background(), "photos", "r1/a.jpg", data))
	data[0] = 'x'

	got, err := m.Object("photos", "r1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)
	assert.Equal(t, "memory://photos/r1/a.jpg", m.PublicURL("photos", "r1/a.jpg"))

	_, err = m.Object("photos", "missing")
	assert.ErrorIs(t, err, ErrNoObject)
}

func TestMemoryPubSub(t *testing.T) {
	m := NewMemory(testutil.TestLogger(t))
	var got []any
	sub := m.Subscribe("conversation:c1", func(e Event) {
		got = append(got, e.Payload)
	})
	assert.Equal(t, "conversation:c1", sub.Channel())

	require.NoError(t, m.Publish(context.Background(), "conversation:c1", "one"))
	require.NoError(t, m.Publish(context.Background(), "conversation:c2", "other"))
	m.Unsubscribe(sub)
	m.Unsubscribe(nil)
	require.NoError(t, m.Publish(context.Background(), "conversation:c1", "two"))

	assert.Equal(t, []any{"one"}, got)
}
