// Package seed holds the default dataset a fresh install or a reset starts
// from. Ids are fixed so links between stores stay valid.
package seed

import (
	"time"

	"github.com/npezzotti/go-carehome/internal/checklist"
	"github.com/npezzotti/go-carehome/internal/directory"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/messaging"
	"github.com/npezzotti/go-carehome/internal/types"
)

const (
	StaffPriya   = "staff-1"
	StaffTom     = "staff-2"
	FamilyMargot = "family-1"
	FamilyDavid  = "family-2"

	ResidentEdith  = "resident-1"
	ResidentWalter = "resident-2"
	ResidentRose   = "resident-3"
)

var users = []types.User{
	{Id: StaffPriya, DisplayName: "Priya Shah", Role: types.RoleStaff, Email: "priya@oakview.example"},
	{Id: StaffTom, DisplayName: "Tom Reid", Role: types.RoleStaff},
	{Id: FamilyMargot, DisplayName: "Margot Ellis", Role: types.RoleFamily, Email: "margot@example.com"},
	{Id: FamilyDavid, DisplayName: "David Okafor", Role: types.RoleFamily},
}

func Directory() directory.State {
	return directory.State{
		Users:         append([]types.User{}, users...),
		CurrentUserId: StaffPriya,
	}
}

func participant(id string) types.Participant {
	for _, u := range users {
		if u.Id == id {
			return types.Participant{Id: u.Id, Name: u.DisplayName, Role: u.Role}
		}
	}
	return types.Participant{Id: id}
}

func Residents() []types.Resident {
	return []types.Resident{
		{Id: ResidentEdith, Name: "Edith Ellis", Room: "12", PhotoConsent: true, FamilyMemberIds: []string{FamilyMargot}},
		{Id: ResidentWalter, Name: "Walter Okafor", Room: "14", PhotoConsent: false, FamilyMemberIds: []string{FamilyDavid}},
		{Id: ResidentRose, Name: "Rose Nguyen", Room: "7", PhotoConsent: true, FamilyMemberIds: []string{}},
	}
}

// Feed seeds residents plus a couple of entries from earlier today.
func Feed(now time.Time) feed.State {
	return feed.State{
		Residents: Residents(),
		Items: map[string][]types.FeedItem{
			ResidentEdith: {
				{
					Id:         "seed-fi-2",
					ResidentId: ResidentEdith,
					AuthorId:   StaffPriya,
					Type:       "activity",
					Text:       "Activity: Sang along in the lounge",
					Tags:       []string{"music"},
					CreatedAt:  now.Add(-30 * time.Minute),
					Reactions:  types.Reactions{Heart: 1},
				},
				{
					Id:         "seed-fi-1",
					ResidentId: ResidentEdith,
					AuthorId:   StaffPriya,
					Type:       "meal",
					Tags:       []string{"all"},
					CreatedAt:  now.Add(-2 * time.Hour),
					Reactions:  types.Reactions{},
				},
			},
			ResidentWalter: {},
			ResidentRose:   {},
		},
	}
}

func Messages(now time.Time) messaging.State {
	created := now.Add(-24 * time.Hour)
	first := types.Message{
		Id:             "seed-msg-1",
		ConversationId: "seed-conv-1",
		SenderId:       FamilyMargot,
		SenderName:     "Margot Ellis",
		SenderRole:     types.RoleFamily,
		Content:        "How was Mum's morning?",
		Timestamp:      now.Add(-time.Hour),
		ResidentId:     ResidentEdith,
	}
	return messaging.State{
		Conversations: []types.Conversation{
			{
				Id:           "seed-conv-1",
				Title:        "Edith Ellis",
				Participants: []types.Participant{participant(StaffPriya), participant(FamilyMargot)},
				ResidentId:   ResidentEdith,
				UnreadCount:  1,
				LastMessage:  &first,
				CreatedAt:    created,
			},
			{
				Id:           "seed-conv-2",
				Title:        "Walter Okafor care team",
				Participants: []types.Participant{participant(StaffPriya), participant(StaffTom), participant(FamilyDavid)},
				ResidentId:   ResidentWalter,
				IsGroupChat:  true,
				CreatedAt:    created,
			},
		},
		Messages: map[string][]types.Message{
			"seed-conv-1": {first},
			"seed-conv-2": {},
		},
	}
}

func Checklist() checklist.State {
	var tasks []types.ChecklistTask
	for _, r := range Residents() {
		tasks = append(tasks,
			types.ChecklistTask{Id: r.Id + "-breakfast", ResidentId: r.Id, Label: "Breakfast", ActionId: "meal"},
			types.ChecklistTask{Id: r.Id + "-meds", ResidentId: r.Id, Label: "Morning medication", ActionId: "meds"},
			types.ChecklistTask{Id: r.Id + "-care", ResidentId: r.Id, Label: "Personal care", ActionId: "hygiene"},
			types.ChecklistTask{Id: r.Id + "-fluids", ResidentId: r.Id, Label: "Fluids offered", ActionId: "drink"},
		)
	}
	return checklist.State{Tasks: tasks, CompletedAt: map[string]time.Time{}}
}

func Recents() []types.RecentAction {
	return []types.RecentAction{}
}
