package types

import (
	"time"
)

type Role string

const (
	RoleStaff  Role = "staff"
	RoleFamily Role = "family"
)

func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleFamily
}

type User struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	Email       string `json:"email,omitempty"`
}

type Resident struct {
	Id              string   `json:"id"`
	Name            string   `json:"name"`
	Room            string   `json:"room,omitempty"`
	PhotoConsent    bool     `json:"photo_consent"`
	FamilyMemberIds []string `json:"family_member_ids"`
}

// HasFamilyMember reports whether userId is linked to the resident.
func (r Resident) HasFamilyMember(userId string) bool {
	for _, id := range r.FamilyMemberIds {
		if id == userId {
			return true
		}
	}
	return false
}

type Reactions struct {
	Heart       int  `json:"heart"`
	ReactedByMe bool `json:"reacted_by_me"`
}

type FeedItem struct {
	Id         string    `json:"id"`
	ResidentId string    `json:"resident_id"`
	AuthorId   string    `json:"author_id"`
	Type       string    `json:"type"`
	Text       string    `json:"text,omitempty"`
	Tags       []string  `json:"tags"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Reactions  Reactions `json:"reactions"`
}

type Participant struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

type Conversation struct {
	Id           string        `json:"id"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	ResidentId   string        `json:"resident_id,omitempty"`
	IsGroupChat  bool          `json:"is_group_chat"`
	UnreadCount  int           `json:"unread_count"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// HasParticipant reports whether userId takes part in the conversation.
func (c Conversation) HasParticipant(userId string) bool {
	for _, p := range c.Participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}

// LastActivity is the timestamp conversations are ordered by.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

type Message struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	SenderId       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderRole     Role      `json:"sender_role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	IsRead         bool      `json:"is_read"`
	ResidentId     string    `json:"resident_id,omitempty"`
}

type RecentAction struct {
	ActionId  string    `json:"action_id"`
	VariantId string    `json:"variant_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChecklistTask struct {
	Id         string `json:"id"`
	ResidentId string `json:"resident_id"`
	Label      string `json:"label"`
	ActionId   string `json:"action_id,omitempty"`
}
