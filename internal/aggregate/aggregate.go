// Package aggregate derives read-only summaries from the stores. Nothing
// here is cached; every call reads the stores afresh.
package aggregate

import (
	"math"
	"time"

	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/types"
)

type FeedSource interface {
	Residents() []types.Resident
	Resident(id string) (types.Resident, bool)
	FeedItemsByResident(residentId string) []types.FeedItem
	TodayStats() feed.TodayStats
	Now() time.Time
}

type TaskSource interface {
	Tasks(residentId string) []types.ChecklistTask
	CompletedOn(taskId string, day time.Time) bool
}

type Progress struct {
	ResidentId string     `json:"resident_id"`
	Name       string     `json:"name"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Percent    int        `json:"percent"`
	Updates    int        `json:"updates"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

type Facility struct {
	Date             time.Time       `json:"date"`
	Today            feed.TodayStats `json:"today"`
	Residents        int             `json:"residents"`
	ResidentsUpdated int             `json:"residents_updated"`
	CoveragePercent  int             `json:"coverage_percent"`
	TasksCompleted   int             `json:"tasks_completed"`
	TasksTotal       int             `json:"tasks_total"`
	TaskPercent      int             `json:"task_percent"`
	Progress         []Progress      `json:"progress"`
}

// Percent is completed/total as a rounded percentage; 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

type Aggregator struct {
	feed  FeedSource
	tasks TaskSource
}

func New(fs FeedSource, ts TaskSource) *Aggregator {
	return &Aggregator{feed: fs, tasks: ts}
}

// ResidentProgress counts today's checklist for one resident. A task is done
// when it was ticked off today or when an item of its action type was
// logged today.
func (a *Aggregator) ResidentProgress(residentId string) (Progress, bool) {
	r, ok := a.feed.Resident(residentId)
	if !ok {
		return Progress{}, false
	}
	return a.progress(r, a.feed.Now()), true
}

func (a *Aggregator) progress(r types.Resident, now time.Time) Progress {
	p := Progress{ResidentId: r.Id, Name: r.Name}

	loggedToday := make(map[string]bool)
	items := a.feed.FeedItemsByResident(r.Id)
	for _, it := range items {
		if clock.SameDay(it.CreatedAt, now) {
			loggedToday[it.Type] = true
			p.Updates++
		}
	}
	if len(items) > 0 {
		last := items[0].CreatedAt
		p.LastUpdate = &last
	}

	for _, t := range a.tasks.Tasks(r.Id) {
		p.Total++
		if a.tasks.CompletedOn(t.Id, now) || (t.ActionId != "" && loggedToday[t.ActionId]) {
			p.Completed++
		}
	}
	p.Percent = Percent(p.Completed, p.Total)
	return p
}

func (a *Aggregator) Facility() Facility {
	now := a.feed.Now()
	residents := a.feed.Residents()
	f := Facility{
		Date:      now,
		Today:     a.feed.TodayStats(),
		Residents: len(residents),
		Progress:  make([]Progress, 0, len(residents)),
	}

	for _, r := range residents {
		p := a.progress(r, now)
		if p.Updates > 0 {
			f.ResidentsUpdated++
		}
		f.TasksCompleted += p.Completed
		f.TasksTotal += p.Total
		f.Progress = append(f.Progress, p)
	}
	f.CoveragePercent = Percent(f.ResidentsUpdated, f.Residents)
	f.TaskPercent = Percent(f.TasksCompleted, f.TasksTotal)
	return f
}
