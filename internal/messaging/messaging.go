package messaging

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/ids"
	"github.com/npezzotti/go-carehome/internal/observe"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

const (
	TableMessages = "messages"

	metricMessagesSent   = "messages_sent"
	metricUnreadMessages = "unread_messages"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("user is not a participant")
)

// ChannelFor names the pub/sub channel a conversation's messages go out on.
func ChannelFor(conversationId string) string {
	return "conversation:" + conversationId
}

type State struct {
	Conversations []types.Conversation       `json:"conversations"`
	Messages      map[string][]types.Message `json:"messages"`
}

type Store struct {
	log     *zap.Logger
	stats   stats.StatsProvider
	backend backend.Backend
	now     clock.Clock
	observe.Hub

	mu            sync.RWMutex
	conversations map[string]*types.Conversation
	order         []string
	messages      map[string][]types.Message
	totalUnread   int
}

func NewStore(logger *zap.Logger, su stats.StatsProvider, now clock.Clock, be backend.Backend) *Store {
	su.RegisterMetric(metricMessagesSent)
	su.RegisterMetric(metricUnreadMessages)

	return &Store{
		log:           logger,
		stats:         su,
		backend:       be,
		now:           now,
		conversations: make(map[string]*types.Conversation),
		messages:      make(map[string][]types.Message),
	}
}

// CreateConversation registers a conversation and returns its id. Whether it
// is a group chat is fixed here from the initial participant count.
func (s *Store) CreateConversation(title string, participants []types.Participant, residentId string) string {
	c := &types.Conversation{
		Id:           ids.New("conv_"),
		Title:        title,
		Participants: append([]types.Participant{}, participants...),
		ResidentId:   residentId,
		IsGroupChat:  len(participants) > 2,
		CreatedAt:    s.now(),
	}

	s.mu.Lock()
	s.conversations[c.Id] = c
	s.order = append(s.order, c.Id)
	s.messages[c.Id] = []types.Message{}
	s.mu.Unlock()

	s.log.Info("conversation_created",
		zap.String("conversation_id", c.Id),
		zap.Int("participants", len(participants)),
		zap.Bool("group", c.IsGroupChat),
	)
	s.Publish()
	return c.Id
}

// SendMessage appends an unread message. Blank content and unknown
// conversations are ignored and reported as false.
func (s *Store) SendMessage(content, conversationId, senderId, senderName string, senderRole types.Role, residentId string) (types.Message, bool) {
	if strings.TrimSpace(content) == "" {
		s.log.Debug("send_message_ignored", zap.String("reason", "empty content"))
		return types.Message{}, false
	}

	s.mu.Lock()
	c, ok := s.conversations[conversationId]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("send_message_ignored", zap.String("conversation_id", conversationId), zap.String("reason", "unknown conversation"))
		return types.Message{}, false
	}

	msg := types.Message{
		Id:             ids.New("msg_"),
		ConversationId: conversationId,
		SenderId:       senderId,
		SenderName:     senderName,
		SenderRole:     senderRole,
		Content:        content,
		Timestamp:      s.now(),
		ResidentId:     residentId,
	}
	s.messages[conversationId] = append(s.messages[conversationId], msg)
	last := msg
	c.LastMessage = &last
	c.UnreadCount++
	s.totalUnread++
	s.mu.Unlock()

	s.stats.Incr(metricMessagesSent)
	s.stats.Incr(metricUnreadMessages)
	s.mirror(msg)
	s.Publish()
	return msg, true
}

// MarkConversationAsRead flips every unread message and returns how many
// changed. The global unread total drops by exactly that amount.
func (s *Store) MarkConversationAsRead(conversationId string) int {
	s.mu.Lock()
	c, ok := s.conversations[conversationId]
	if !ok {
		s.mu.Unlock()
		return 0
	}

	flipped := 0
	list := s.messages[conversationId]
	for i := range list {
		if !list[i].IsRead {
			list[i].IsRead = true
			flipped++
		}
	}
	if c.LastMessage != nil {
		c.LastMessage.IsRead = true
	}
	c.UnreadCount = 0
	s.totalUnread -= flipped
	s.mu.Unlock()

	if flipped == 0 {
		return 0
	}

	s.stats.Add(metricUnreadMessages, -flipped)
	if s.backend != nil {
		_, err := s.backend.Update(context.Background(), TableMessages,
			backend.Row{"conversation_id": conversationId}, backend.Row{"is_read": true})
		if err != nil {
			s.log.Warn("backend_update_failed", zap.String("conversation_id", conversationId), zap.Error(err))
		}
	}
	s.Publish()
	return flipped
}

// ConversationsForUser lists the user's conversations, most recently active
// first. Membership is the only access check in the store.
func (s *Store) ConversationsForUser(userId string) []types.Conversation {
	s.mu.RLock()
	var out []types.Conversation
	for _, id := range s.order {
		c := s.conversations[id]
		if c.HasParticipant(userId) {
			out = append(out, cloneConversation(c))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out
}

// ConversationsByRole groups conversations that include someone of role. It
// is for display only and performs no membership check.
func (s *Store) ConversationsByRole(role types.Role) []types.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Conversation
	for _, id := range s.order {
		c := s.conversations[id]
		for _, p := range c.Participants {
			if p.Role == role {
				out = append(out, cloneConversation(c))
				break
			}
		}
	}
	return out
}

// Messages returns the conversation history in send order if userId is a
// participant.
func (s *Store) Messages(userId, conversationId string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[conversationId]
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !c.HasParticipant(userId) {
		return nil, ErrNotParticipant
	}
	return append([]types.Message{}, s.messages[conversationId]...), nil
}

func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalUnread
}

// UnreadForUser sums unread counts over the user's conversations.
func (s *Store) UnreadForUser(userId string) int {
	n := 0
	for _, c := range s.ConversationsForUser(userId) {
		n += c.UnreadCount
	}
	return n
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Conversations: make([]types.Conversation, 0, len(s.order)),
		Messages:      make(map[string][]types.Message, len(s.messages)),
	}
	for _, id := range s.order {
		st.Conversations = append(st.Conversations, cloneConversation(s.conversations[id]))
		st.Messages[id] = append([]types.Message{}, s.messages[id]...)
	}
	return st
}

// Restore replaces the store's contents. Unread counts are rebuilt from the
// messages themselves.
func (s *Store) Restore(st State) {
	s.mu.Lock()
	s.conversations = make(map[string]*types.Conversation, len(st.Conversations))
	s.order = make([]string, 0, len(st.Conversations))
	s.messages = make(map[string][]types.Message, len(st.Conversations))
	s.totalUnread = 0
	for _, conv := range st.Conversations {
		if _, dup := s.conversations[conv.Id]; dup {
			continue
		}
		c := cloneConversation(&conv)
		msgs := append([]types.Message{}, st.Messages[c.Id]...)
		c.UnreadCount = 0
		for _, m := range msgs {
			if !m.IsRead {
				c.UnreadCount++
			}
		}
		s.totalUnread += c.UnreadCount
		s.conversations[c.Id] = &c
		s.order = append(s.order, c.Id)
		s.messages[c.Id] = msgs
	}
	s.mu.Unlock()

	s.Publish()
}

func (s *Store) mirror(msg types.Message) {
	if s.backend == nil {
		return
	}
	ctx := context.Background()
	_, err := s.backend.Insert(ctx, TableMessages, backend.Row{
		"id":              msg.Id,
		"conversation_id": msg.ConversationId,
		"sender_id":       msg.SenderId,
		"content":         msg.Content,
		"timestamp":       msg.Timestamp,
		"is_read":         false,
	})
	if err != nil {
		s.log.Warn("backend_insert_failed", zap.String("message_id", msg.Id), zap.Error(err))
		return
	}
	if err := s.backend.Publish(ctx, ChannelFor(msg.ConversationId), msg); err != nil {
		s.log.Warn("backend_publish_failed", zap.String("message_id", msg.Id), zap.Error(err))
	}
}

func cloneConversation(c *types.Conversation) types.Conversation {
	out := *c
	out.Participants = append([]types.Participant{}, c.Participants...)
	if c.LastMessage != nil {
		m := *c.LastMessage
		out.LastMessage = &m
	}
	return out
}
