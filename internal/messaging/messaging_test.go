package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/npezzotti/go-carehome/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	nurse  = types.Participant{Id: "s1", Name: "Nurse Ana", Role: types.RoleStaff}
	carer  = types.Participant{Id: "s2", Name: "Carer Bo", Role: types.RoleStaff}
	family = types.Participant{Id: "f1", Name: "Sam Lee", Role: types.RoleFamily}
)

func newTestStore(t *testing.T, now *clock.Manual) *Store {
	return NewStore(testutil.TestLogger(t), stats.NewPermissiveMock(), now.Clock(), nil)
}

func send(s *Store, convId string, from types.Participant, content string) (types.Message, bool) {
	return s.SendMessage(content, convId, from.Id, from.Name, from.Role, "")
}

func TestCreateConversation(t *testing.T) {
	s := newTestStore(t, clock.NewManual(testutil.Today()))

	direct := s.CreateConversation("Edith", []types.Participant{nurse, family}, "r1")
	group := s.CreateConversation("Edith care team", []types.Participant{nurse, carer, family}, "r1")
	assert.NotEqual(t, direct, group)

	convs := s.ConversationsForUser("f1")
	require.Len(t, convs, 2)
	byId := map[string]types.Conversation{convs[0].Id: convs[0], convs[1].Id: convs[1]}
	assert.False(t, byId[direct].IsGroupChat)
	assert.True(t, byId[group].IsGroupChat)
	assert.Equal(t, "r1", byId[group].ResidentId)
}

func TestSendMessage(t *testing.T) {
	now := clock.NewManual(testutil.Today())
	s := newTestStore(t, now)
	id := s.CreateConversation("Edith", []types.Participant{nurse, family}, "")

	tcases := []struct {
		name    string
		convId  string
		content string
		ok      bool
	}{
		{name: "empty", convId: id, content: "", ok: false},
		{name: "whitespace", convId: id, content: "  \n\t", ok: false},
		{name: "unknown conversation", convId: "nope", content: "hello", ok: false},
		{name: "valid", convId: id, content: "Edith ate well today", ok: true},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := send(s, tc.convId, nurse, tc.content)
			assert.Equal(t, tc.ok, ok)
		})
	}

	msgs, err := s.Messages("f1", id)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "expected only the valid message to be appended")
	assert.False(t, msgs[0].IsRead)
	assert.Equal(t, now.Now(), msgs[0].Timestamp)

	conv := s.ConversationsForUser("f1")[0]
	assert.Equal(t, 1, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, msgs[0].Id, conv.LastMessage.Id)
	assert.Equal(t, 1, s.TotalUnread())
}

func TestMarkConversationAsRead(t *testing.T) {
	s := newTestStore(t, clock.NewManual(testutil.Today()))
	a := s.CreateConversation("A", []types.Participant{nurse, family}, "")
	b := s.CreateConversation("B", []types.Participant{carer, family}, "")

	send(s, a, nurse, "one")
	send(s, a, nurse, "two")
	send(s, b, carer, "three")
	require.Equal(t, 3, s.TotalUnread())

	assert.Equal(t, 2, s.MarkConversationAsRead(a))
	assert.Equal(t, 1, s.TotalUnread(), "expected only the flipped messages to be subtracted")

	msgs, _ := s.Messages("f1", a)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
	}

	assert.Equal(t, 0, s.MarkConversationAsRead(a), "expected repeat call to be a no-op")
	assert.Equal(t, 1, s.TotalUnread())
	assert.Equal(t, 0, s.MarkConversationAsRead("missing"))

	send(s, a, nurse, "four")
	assert.Equal(t, 2, s.TotalUnread())
	assert.Equal(t, 2, s.UnreadForUser("f1"))
	assert.Equal(t, 1, s.UnreadForUser("s1"))

	for _, c := range s.ConversationsForUser("f1") {
		msgs, _ := s.Messages("f1", c.Id)
		unread := 0
		for _, m := range msgs {
			if !m.IsRead {
				unread++
			}
		}
		assert.Equal(t, unread, c.UnreadCount, "unread count must match unread messages")
	}
}

func TestMarkConversationAsReadMetrics(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return(nil).Times(2)
	su.On("Incr", metricMessagesSent).Return(nil).Twice()
	su.On("Incr", metricUnreadMessages).Return(nil).Twice()
	su.On("Add", metricUnreadMessages, -2).Return(nil).Once()

	s := NewStore(testutil.TestLogger(t), su, clock.System(), nil)
	id := s.CreateConversation("A", []types.Participant{nurse, family}, "")
	send(s, id, nurse, "one")
	send(s, id, nurse, "two")
	s.MarkConversationAsRead(id)
	s.MarkConversationAsRead(id)
}

func TestConversationsForUserOrdering(t *testing.T) {
	now := clock.NewManual(testutil.Today())
	s := newTestStore(t, now)

	older := s.CreateConversation("older", []types.Participant{nurse, family}, "")
	now.Advance(time.Minute)
	newer := s.CreateConversation("newer", []types.Participant{carer, family}, "")
	now.Advance(time.Minute)
	s.CreateConversation("staff only", []types.Participant{nurse, carer}, "")

	ids := func() []string {
		var out []string
		for _, c := range s.ConversationsForUser("f1") {
			out = append(out, c.Id)
		}
		return out
	}
	assert.Equal(t, []string{newer, older}, ids(), "expected createdAt fallback ordering")

	now.Advance(time.Minute)
	send(s, older, nurse, "bump")
	assert.Equal(t, []string{older, newer}, ids(), "expected last message to win")

	assert.Empty(t, s.ConversationsForUser("stranger"))
}

func TestMessagesRequiresMembership(t *testing.T) {
	s := newTestStore(t, clock.NewManual(testutil.Today()))
	id := s.CreateConversation("staff only", []types.Participant{nurse, carer}, "")
	send(s, id, nurse, "handover at 3")

	_, err := s.Messages("f1", id)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = s.Messages("s1", "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	assert.Len(t, s.ConversationsByRole(types.RoleStaff), 1)
	assert.Empty(t, s.ConversationsByRole(types.RoleFamily))
}

func TestBackendMirror(t *testing.T) {
	be := backend.NewMemory(testutil.TestLogger(t), TableMessages)
	s := NewStore(testutil.TestLogger(t), stats.NewPermissiveMock(), clock.System(), be)
	id := s.CreateConversation("A", []types.Participant{nurse, family}, "")

	var (
		mu       sync.Mutex
		received []types.Message
	)
	sub := be.Subscribe(ChannelFor(id), func(e backend.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e.Payload.(types.Message))
	})
	defer be.Unsubscribe(sub)

	msg, ok := send(s, id, nurse, "hello")
	require.True(t, ok)

	mu.Lock()
	require.Len(t, received, 1)
	assert.Equal(t, msg.Id, received[0].Id)
	mu.Unlock()

	s.MarkConversationAsRead(id)
	rows, err := be.Select(context.Background(), TableMessages, backend.Row{"id": msg.Id})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, true, rows[0]["is_read"])
}

func TestStateRoundTrip(t *testing.T) {
	s := newTestStore(t, clock.NewManual(testutil.Today()))
	a := s.CreateConversation("A", []types.Participant{nurse, family}, "")
	send(s, a, nurse, "one")
	send(s, a, family, "two")
	s.MarkConversationAsRead(a)
	send(s, a, nurse, "three")

	other := newTestStore(t, clock.NewManual(testutil.Today()))
	other.Restore(s.State())

	assert.Equal(t, s.ConversationsForUser("f1"), other.ConversationsForUser("f1"))
	assert.Equal(t, 1, other.TotalUnread())
}
