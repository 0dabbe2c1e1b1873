// Package quicklog implements the selection engine staff use to compose
// care log entries before they are written to a resident's feed.
package quicklog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/npezzotti/go-carehome/internal/catalog"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrActionDisabled = errors.New("action disabled for resident")
	ErrNothingToLog   = errors.New("nothing selected")
)

// FeedWriter is the part of the feed store a session writes through.
type FeedWriter interface {
	Resident(id string) (types.Resident, bool)
	AddFeedItem(in feed.NewFeedItem) (types.FeedItem, error)
}

// Selection is a read-only view of one selected action.
type Selection struct {
	Variants []string          `json:"variants"`
	Note     string            `json:"note,omitempty"`
	Metrics  map[string]string `json:"metrics,omitempty"`
}

type entry struct {
	variants map[string]bool
	note     string
	metrics  map[string]string
}

func (e *entry) empty() bool {
	return len(e.variants) == 0 && e.note == "" && len(e.metrics) == 0
}

// Session is the state of one composition for one resident. It is not safe
// for concurrent use and is discarded after Submit or Abandon.
type Session struct {
	log        *zap.Logger
	feed       FeedWriter
	recents    *Recents
	residentId string
	authorId   string

	selected    map[string]*entry
	generalNote string
	photos      []string
}

func NewSession(logger *zap.Logger, fw FeedWriter, recents *Recents, residentId, authorId string) *Session {
	return &Session{
		log:        logger.With(zap.String("resident_id", residentId)),
		feed:       fw,
		recents:    recents,
		residentId: residentId,
		authorId:   authorId,
		selected:   make(map[string]*entry),
	}
}

func (s *Session) ResidentId() string {
	return s.residentId
}

// Enabled reports whether actionId may be interacted with right now. The
// resident's consent is read on every call.
func (s *Session) Enabled(actionId string) bool {
	a, ok := catalog.ActionByID(actionId)
	if !ok {
		return false
	}
	return s.gateOpen(a)
}

func (s *Session) gateOpen(a *catalog.QuickAction) bool {
	if a.ConsentGate != catalog.GatePhoto {
		return true
	}
	r, ok := s.feed.Resident(s.residentId)
	return ok && r.PhotoConsent
}

func (s *Session) action(actionId string) (*catalog.QuickAction, error) {
	a, ok := catalog.ActionByID(actionId)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionId)
	}
	if !s.gateOpen(a) {
		s.log.Debug("action_disabled", zap.String("action_id", actionId))
		return nil, fmt.Errorf("%w: %q", ErrActionDisabled, actionId)
	}
	return a, nil
}

func single(v string) map[string]bool {
	if v == "" {
		return map[string]bool{}
	}
	return map[string]bool{v: true}
}

// Tap applies a single tap on actionId.
//
// Unselected actions take their default variant, or an empty selection when
// there is none. A selected action with a cycle steps to the next member and
// deselects after the last one; a selection that is not a single cycle
// member restarts at the first. A selected action without a cycle is
// deselected.
func (s *Session) Tap(actionId string) error {
	a, err := s.action(actionId)
	if err != nil {
		return err
	}

	e, ok := s.selected[a.Id]
	if !ok {
		v, _ := catalog.DefaultVariant(a)
		s.selected[a.Id] = &entry{variants: single(v.Id)}
		return nil
	}

	if !a.HasCycle() {
		delete(s.selected, a.Id)
		return nil
	}
	s.stepCycle(a, e)
	return nil
}

func (s *Session) stepCycle(a *catalog.QuickAction, e *entry) {
	current := ""
	if len(e.variants) == 1 {
		for v := range e.variants {
			current = v
		}
	}

	i := a.CycleIndex(current)
	if i == len(a.Cycle)-1 {
		delete(s.selected, a.Id)
		return
	}
	next, _ := catalog.NextCycleVariant(a, current)
	e.variants = single(next)
}

// ToggleVariant adds or removes one variant. An action left with nothing
// selected is dropped.
func (s *Session) ToggleVariant(actionId, variantId string) error {
	a, err := s.action(actionId)
	if err != nil {
		return err
	}
	if _, ok := a.Variant(variantId); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownVariant, actionId, variantId)
	}

	e, ok := s.selected[a.Id]
	if !ok {
		s.selected[a.Id] = &entry{variants: single(variantId)}
		return nil
	}
	if e.variants[variantId] {
		delete(e.variants, variantId)
	} else {
		e.variants[variantId] = true
	}
	if e.empty() {
		delete(s.selected, a.Id)
	}
	return nil
}

// SelectRecent sets the recent pair directly, replacing any current
// selection for the action.
func (s *Session) SelectRecent(ra types.RecentAction) error {
	a, err := s.action(ra.ActionId)
	if err != nil {
		return err
	}
	v := ra.VariantId
	if v == "" {
		d, _ := catalog.DefaultVariant(a)
		v = d.Id
	} else if _, ok := a.Variant(v); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownVariant, ra.ActionId, v)
	}
	s.selected[a.Id] = &entry{variants: single(v)}
	return nil
}

// SetNote attaches a note to actionId, selecting it bare if needed. An
// empty note clears it, dropping an entry left with nothing selected.
func (s *Session) SetNote(actionId, note string) error {
	a, err := s.action(actionId)
	if err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	e, ok := s.selected[a.Id]
	if !ok {
		if note == "" {
			return nil
		}
		e = s.ensure(a)
	}
	wasEmpty := e.empty()
	e.note = note
	s.dropIfCleared(a.Id, e, wasEmpty)
	return nil
}

// SetMetrics records structured readings, e.g. {"pulse": "72"}. Keys must be
// declared by the action.
func (s *Session) SetMetrics(actionId string, metrics map[string]string) error {
	a, err := s.action(actionId)
	if err != nil {
		return err
	}
	for k := range metrics {
		declared := false
		for _, m := range a.Metrics {
			if m == k {
				declared = true
				break
			}
		}
		if !declared {
			return types.NewValidationError("metrics", fmt.Sprintf("%s does not record %q", a.Id, k))
		}
	}

	readings := make(map[string]string, len(metrics))
	for k, v := range metrics {
		if v = strings.TrimSpace(v); v != "" {
			readings[k] = v
		}
	}

	e, ok := s.selected[a.Id]
	if !ok {
		if len(readings) == 0 {
			return nil
		}
		e = s.ensure(a)
	}
	wasEmpty := e.empty()
	e.metrics = readings
	s.dropIfCleared(a.Id, e, wasEmpty)
	return nil
}

// dropIfCleared removes an entry that clearing a note or metrics has left
// with nothing selected. A bare tap selection that was already empty stays.
func (s *Session) dropIfCleared(actionId string, e *entry, wasEmpty bool) {
	if e.empty() && !wasEmpty {
		delete(s.selected, actionId)
	}
}

func (s *Session) ensure(a *catalog.QuickAction) *entry {
	e, ok := s.selected[a.Id]
	if !ok {
		e = &entry{variants: map[string]bool{}}
		s.selected[a.Id] = e
	}
	return e
}

func (s *Session) SetGeneralNote(note string) {
	s.generalNote = strings.TrimSpace(note)
}

// AddPhoto queues a photo reference. Photos need the resident's consent.
func (s *Session) AddPhoto(ref string) error {
	r, ok := s.feed.Resident(s.residentId)
	if !ok {
		return types.NewUnknownResidentError(s.residentId)
	}
	if !r.PhotoConsent {
		return fmt.Errorf("%w: photo", ErrActionDisabled)
	}
	s.photos = append(s.photos, ref)
	return nil
}

func (s *Session) Photos() []string {
	return append([]string{}, s.photos...)
}

// Selected returns a snapshot of the current selection keyed by action id.
// Variants are listed in declared order.
func (s *Session) Selected() map[string]Selection {
	out := make(map[string]Selection, len(s.selected))
	for id, e := range s.selected {
		a, _ := catalog.ActionByID(id)
		sel := Selection{Variants: orderedVariants(a, e), Note: e.note}
		if len(e.metrics) > 0 {
			sel.Metrics = make(map[string]string, len(e.metrics))
			for k, v := range e.metrics {
				sel.Metrics[k] = v
			}
		}
		out[id] = sel
	}
	return out
}

func (s *Session) IsSelected(actionId string) bool {
	_, ok := s.selected[actionId]
	return ok
}

// Abandon discards everything composed so far.
func (s *Session) Abandon() {
	s.selected = make(map[string]*entry)
	s.generalNote = ""
	s.photos = nil
}

func orderedVariants(a *catalog.QuickAction, e *entry) []string {
	out := make([]string, 0, len(e.variants))
	for _, v := range a.Variants {
		if e.variants[v.Id] {
			out = append(out, v.Id)
		}
	}
	return out
}

func metricTags(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, k+"="+m[k])
	}
	return tags
}

// Submit writes one feed item per selected action, in catalog order. The
// general note and the first photo go on the first item only. On success
// the selection is cleared and the submitted pairs become recents. If a
// write fails partway, the items already written are returned with the
// error and only the unwritten actions stay selected.
func (s *Session) Submit() ([]types.FeedItem, error) {
	r, ok := s.feed.Resident(s.residentId)
	if !ok {
		err := types.NewUnknownResidentError(s.residentId)
		s.log.Warn("quicklog_submit_rejected", zap.Error(err))
		return nil, err
	}
	if len(s.selected) == 0 {
		return nil, ErrNothingToLog
	}

	var pending []*catalog.QuickAction
	for _, a := range catalog.Actions() {
		if _, ok := s.selected[a.Id]; !ok {
			continue
		}
		if a.ConsentGate == catalog.GatePhoto && !r.PhotoConsent {
			return nil, fmt.Errorf("%w: %q", ErrActionDisabled, a.Id)
		}
		pending = append(pending, a)
	}
	if len(s.photos) > 0 && !r.PhotoConsent {
		return nil, fmt.Errorf("%w: photo", ErrActionDisabled)
	}

	var (
		items []types.FeedItem
		pairs []types.RecentAction
	)
	for i, a := range pending {
		e := s.selected[a.Id]
		variants := orderedVariants(a, e)

		in := feed.NewFeedItem{
			ResidentId: s.residentId,
			AuthorId:   s.authorId,
			Type:       a.Id,
			Tags:       append(variants, metricTags(e.metrics)...),
		}
		var text []string
		if e.note != "" {
			text = append(text, a.Label+": "+e.note)
		}
		if i == 0 {
			if s.generalNote != "" {
				text = append(text, s.generalNote)
			}
			if len(s.photos) > 0 {
				in.PhotoURL = s.photos[0]
			}
		}
		in.Text = strings.Join(text, "\n")

		item, err := s.feed.AddFeedItem(in)
		if err != nil {
			s.log.Error("quicklog_submit_failed", zap.String("action_id", a.Id),
				zap.Int("already_logged", len(items)), zap.Error(err))
			s.forgetSubmitted(pending[:i], pairs)
			return items, fmt.Errorf("log %s: %w", a.Id, err)
		}
		items = append(items, item)

		if len(variants) == 0 {
			pairs = append(pairs, types.RecentAction{ActionId: a.Id})
		}
		for _, v := range variants {
			pairs = append(pairs, types.RecentAction{ActionId: a.Id, VariantId: v})
		}
	}

	s.Abandon()
	if s.recents != nil {
		s.recents.Push(pairs...)
	}
	s.log.Info("quicklog_submitted", zap.Int("items", len(items)), zap.String("author_id", s.authorId))
	return items, nil
}

// forgetSubmitted drops actions that already reached the feed after a
// partial Submit so a retry only logs what is left. The general note and
// photos went out with the first item.
func (s *Session) forgetSubmitted(done []*catalog.QuickAction, pairs []types.RecentAction) {
	if len(done) == 0 {
		return
	}
	for _, a := range done {
		delete(s.selected, a.Id)
	}
	s.generalNote = ""
	s.photos = nil
	if s.recents != nil {
		s.recents.Push(pairs...)
	}
}
