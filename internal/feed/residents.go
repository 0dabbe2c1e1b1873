package feed

import (
	"github.com/npezzotti/go-carehome/internal/ids"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

type NewResident struct {
	Name            string
	Room            string
	PhotoConsent    bool
	FamilyMemberIds []string
}

// AddResident registers a resident under a fresh id with an empty feed.
func (s *Store) AddResident(data NewResident) types.Resident {
	r := types.Resident{
		Id:              ids.New("res_"),
		Name:            data.Name,
		Room:            data.Room,
		PhotoConsent:    data.PhotoConsent,
		FamilyMemberIds: append([]string{}, data.FamilyMemberIds...),
	}

	s.mu.Lock()
	s.residents[r.Id] = r
	s.order = append(s.order, r.Id)
	s.items[r.Id] = []types.FeedItem{}
	s.mu.Unlock()

	s.log.Info("resident_added", zap.String("resident_id", r.Id), zap.String("room", r.Room))
	s.Publish()
	return cloneResident(r)
}

// ReplaceResident swaps the whole record for an already registered
// resident. The resident's feed is untouched.
func (s *Store) ReplaceResident(r types.Resident) error {
	s.mu.Lock()
	if _, ok := s.residents[r.Id]; !ok {
		s.mu.Unlock()
		err := types.NewUnknownResidentError(r.Id)
		s.log.Warn("replace_resident_rejected", zap.Error(err))
		return err
	}
	s.residents[r.Id] = cloneResident(r)
	s.mu.Unlock()

	s.Publish()
	return nil
}

func (s *Store) Resident(id string) (types.Resident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.residents[id]
	if !ok {
		return types.Resident{}, false
	}
	return cloneResident(r), true
}

// Residents lists residents in registration order.
func (s *Store) Residents() []types.Resident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.residentsLocked()
}

func (s *Store) residentsLocked() []types.Resident {
	out := make([]types.Resident, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneResident(s.residents[id]))
	}
	return out
}

// ResidentsForFamilyMember lists the residents userId is linked to.
func (s *Store) ResidentsForFamilyMember(userId string) []types.Resident {
	var out []types.Resident
	for _, r := range s.Residents() {
		if r.HasFamilyMember(userId) {
			out = append(out, r)
		}
	}
	return out
}

func cloneResident(r types.Resident) types.Resident {
	r.FamilyMemberIds = append([]string{}, r.FamilyMemberIds...)
	return r
}
