package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/ids"
	"github.com/npezzotti/go-carehome/internal/observe"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

const (
	TableFeedItems = "feed_items"

	metricItemsAdded       = "feed_items_added"
	metricReactionsToggled = "reactions_toggled"
)

// NewFeedItem is what callers supply; the store assigns id, timestamp and
// reactions.
type NewFeedItem struct {
	ResidentId string
	AuthorId   string
	Type       string
	Text       string
	Tags       []string
	PhotoURL   string
}

type TodayStats struct {
	TotalUpdates          int              `json:"total_updates"`
	ByType                map[string]int   `json:"by_type"`
	ResidentsWithNoUpdate []types.Resident `json:"residents_with_no_update"`
}

// State is the persisted form of the store.
type State struct {
	Residents []types.Resident            `json:"residents"`
	Items     map[string][]types.FeedItem `json:"items"`
}

// Store owns residents and their care feeds. Each resident's list is kept
// newest first.
type Store struct {
	log     *zap.Logger
	stats   stats.StatsProvider
	backend backend.Backend
	now     clock.Clock
	observe.Hub

	mu        sync.RWMutex
	residents map[string]types.Resident
	order     []string
	items     map[string][]types.FeedItem
}

// NewStore builds an empty store. be may be nil, in which case nothing is
// mirrored to a backend.
func NewStore(logger *zap.Logger, su stats.StatsProvider, now clock.Clock, be backend.Backend) *Store {
	su.RegisterMetric(metricItemsAdded)
	su.RegisterMetric(metricReactionsToggled)

	return &Store{
		log:       logger,
		stats:     su,
		backend:   be,
		now:       now,
		residents: make(map[string]types.Resident),
		items:     make(map[string][]types.FeedItem),
	}
}

func (s *Store) AddFeedItem(in NewFeedItem) (types.FeedItem, error) {
	if strings.TrimSpace(in.ResidentId) == "" {
		err := types.NewValidationError("resident_id", "cannot be empty")
		s.log.Warn("add_feed_item_rejected", zap.Error(err))
		return types.FeedItem{}, err
	}

	s.mu.Lock()
	if _, ok := s.residents[in.ResidentId]; !ok {
		s.mu.Unlock()
		err := types.NewUnknownResidentError(in.ResidentId)
		s.log.Warn("add_feed_item_rejected", zap.Error(err))
		return types.FeedItem{}, err
	}

	item := types.FeedItem{
		Id:         ids.New("fi_"),
		ResidentId: in.ResidentId,
		AuthorId:   in.AuthorId,
		Type:       in.Type,
		Text:       in.Text,
		Tags:       append([]string{}, in.Tags...),
		PhotoURL:   in.PhotoURL,
		CreatedAt:  s.now(),
	}
	list := s.items[in.ResidentId]
	next := make([]types.FeedItem, 0, len(list)+1)
	next = append(next, item)
	s.items[in.ResidentId] = append(next, list...)
	s.mu.Unlock()

	s.stats.Incr(metricItemsAdded)
	s.log.Debug("feed_item_added",
		zap.String("item_id", item.Id),
		zap.String("resident_id", item.ResidentId),
		zap.String("type", item.Type),
	)
	s.mirrorInsert(item)
	s.Publish()
	return cloneItem(item), nil
}

// ToggleReaction flips the viewer's heart on itemId. Unknown ids are
// ignored.
func (s *Store) ToggleReaction(itemId string) {
	s.mu.Lock()
	var (
		found bool
		heart int
	)
	for rid, list := range s.items {
		for i := range list {
			if list[i].Id != itemId {
				continue
			}
			r := &s.items[rid][i].Reactions
			if r.ReactedByMe {
				r.ReactedByMe = false
				if r.Heart > 0 {
					r.Heart--
				}
			} else {
				r.ReactedByMe = true
				r.Heart++
			}
			found, heart = true, r.Heart
			break
		}
		if found {
			break
		}
	}
	s.mu.Unlock()

	if !found {
		s.log.Debug("toggle_reaction_unknown_item", zap.String("item_id", itemId))
		return
	}

	s.stats.Incr(metricReactionsToggled)
	if s.backend != nil {
		_, err := s.backend.Update(context.Background(), TableFeedItems,
			backend.Row{"id": itemId}, backend.Row{"heart": heart})
		if err != nil {
			s.log.Warn("backend_update_failed", zap.String("item_id", itemId), zap.Error(err))
		}
	}
	s.Publish()
}

// FeedItemsByResident returns a copy of the resident's feed, newest first.
func (s *Store) FeedItemsByResident(residentId string) []types.FeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.items[residentId]
	out := make([]types.FeedItem, 0, len(list))
	for _, it := range list {
		out = append(out, cloneItem(it))
	}
	return out
}

// FeedItemsOn returns every item created on the same calendar day as day.
func (s *Store) FeedItemsOn(day time.Time) []types.FeedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.FeedItem
	for _, id := range s.order {
		for _, it := range s.items[id] {
			if clock.SameDay(it.CreatedAt, day) {
				out = append(out, cloneItem(it))
			}
		}
	}
	return out
}

func (s *Store) TodayStats() TodayStats {
	now := s.now()
	st := TodayStats{
		ByType:                make(map[string]int),
		ResidentsWithNoUpdate: []types.Resident{},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		count := 0
		for _, it := range s.items[id] {
			if !clock.SameDay(it.CreatedAt, now) {
				continue
			}
			count++
			st.ByType[it.Type]++
		}
		st.TotalUpdates += count
		if count == 0 {
			st.ResidentsWithNoUpdate = append(st.ResidentsWithNoUpdate, cloneResident(s.residents[id]))
		}
	}
	return st
}

// Now exposes the store's clock to read-side consumers.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Residents: s.residentsLocked(),
		Items:     make(map[string][]types.FeedItem, len(s.items)),
	}
	for rid, list := range s.items {
		cp := make([]types.FeedItem, 0, len(list))
		for _, it := range list {
			cp = append(cp, cloneItem(it))
		}
		st.Items[rid] = cp
	}
	return st
}

func (s *Store) Restore(st State) {
	s.mu.Lock()
	s.residents = make(map[string]types.Resident, len(st.Residents))
	s.order = make([]string, 0, len(st.Residents))
	s.items = make(map[string][]types.FeedItem, len(st.Residents))
	for _, r := range st.Residents {
		if _, dup := s.residents[r.Id]; dup {
			continue
		}
		s.residents[r.Id] = cloneResident(r)
		s.order = append(s.order, r.Id)
		list := make([]types.FeedItem, 0, len(st.Items[r.Id]))
		for _, it := range st.Items[r.Id] {
			list = append(list, cloneItem(it))
		}
		s.items[r.Id] = list
	}
	s.mu.Unlock()

	s.Publish()
}

func (s *Store) mirrorInsert(it types.FeedItem) {
	if s.backend == nil {
		return
	}
	_, err := s.backend.Insert(context.Background(), TableFeedItems, backend.Row{
		"id":          it.Id,
		"resident_id": it.ResidentId,
		"author_id":   it.AuthorId,
		"type":        it.Type,
		"text":        it.Text,
		"photo_url":   it.PhotoURL,
		"created_at":  it.CreatedAt,
		"heart":       0,
	})
	if err != nil {
		s.log.Warn("backend_insert_failed", zap.String("item_id", it.Id), zap.Error(err))
	}
}

func cloneItem(it types.FeedItem) types.FeedItem {
	it.Tags = append([]string{}, it.Tags...)
	return it
}
