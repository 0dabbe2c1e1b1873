// Package catalog holds the static quick-action definitions staff log care
// events with. Everything here is read-only and safe to share.
package catalog

import (
	"errors"
	"fmt"
)

const GatePhoto = "photo"

type Category string

const (
	CategoryNutrition Category = "nutrition"
	CategoryCare      Category = "care"
	CategoryHealth    Category = "health"
	CategoryWellbeing Category = "wellbeing"
	CategoryMedia     Category = "media"
)

type Variant struct {
	Id      string `json:"id"`
	Label   string `json:"label"`
	Default bool   `json:"default,omitempty"`
}

type QuickAction struct {
	Id          string    `json:"id"`
	Label       string    `json:"label"`
	Category    Category  `json:"category"`
	Variants    []Variant `json:"variants,omitempty"`
	Cycle       []string  `json:"cycle,omitempty"`
	ConsentGate string    `json:"consent_gate,omitempty"`
	// Metrics names the structured readings the action accepts, e.g. "pulse".
	Metrics []string `json:"metrics,omitempty"`
}

func (a *QuickAction) HasCycle() bool {
	return len(a.Cycle) > 0
}

func (a *QuickAction) Variant(id string) (Variant, bool) {
	for _, v := range a.Variants {
		if v.Id == id {
			return v, true
		}
	}
	return Variant{}, false
}

// CycleIndex is the position of variantId in the cycle, or -1.
func (a *QuickAction) CycleIndex(variantId string) int {
	for i, id := range a.Cycle {
		if id == variantId {
			return i
		}
	}
	return -1
}

var actions = []QuickAction{
	{
		Id:       "meal",
		Label:    "Meal",
		Category: CategoryNutrition,
		Variants: []Variant{
			{Id: "all", Label: "Ate all", Default: true},
			{Id: "most", Label: "Ate most"},
			{Id: "some", Label: "Ate some"},
			{Id: "none", Label: "Refused"},
		},
		Cycle: []string{"all", "most", "some", "none"},
	},
	{
		Id:       "drink",
		Label:    "Drink",
		Category: CategoryNutrition,
		Variants: []Variant{
			{Id: "water", Label: "Water", Default: true},
			{Id: "tea", Label: "Tea"},
			{Id: "coffee", Label: "Coffee"},
			{Id: "juice", Label: "Juice"},
			{Id: "supplement", Label: "Supplement"},
		},
	},
	{
		Id:       "meds",
		Label:    "Medication",
		Category: CategoryHealth,
		Variants: []Variant{
			{Id: "given", Label: "Given", Default: true},
			{Id: "refused", Label: "Refused"},
			{Id: "held", Label: "Held"},
		},
		Cycle: []string{"given", "refused", "held"},
	},
	{
		Id:       "hygiene",
		Label:    "Personal care",
		Category: CategoryCare,
		Variants: []Variant{
			{Id: "shower", Label: "Shower"},
			{Id: "wash", Label: "Wash"},
			{Id: "teeth", Label: "Teeth"},
			{Id: "hair", Label: "Hair"},
			{Id: "dressed", Label: "Dressed"},
		},
	},
	{
		Id:       "toilet",
		Label:    "Toileting",
		Category: CategoryCare,
		Variants: []Variant{
			{Id: "assisted", Label: "Assisted", Default: true},
			{Id: "independent", Label: "Independent"},
			{Id: "pad", Label: "Pad change"},
		},
	},
	{
		Id:       "vitals",
		Label:    "Vitals",
		Category: CategoryHealth,
		Metrics:  []string{"bp", "pulse", "temp", "spo2"},
	},
	{
		Id:       "activity",
		Label:    "Activity",
		Category: CategoryWellbeing,
		Variants: []Variant{
			{Id: "walk", Label: "Walk"},
			{Id: "music", Label: "Music"},
			{Id: "games", Label: "Games"},
			{Id: "garden", Label: "Garden"},
			{Id: "visit", Label: "Visitor"},
		},
	},
	{
		Id:       "sleep",
		Label:    "Sleep",
		Category: CategoryWellbeing,
		Variants: []Variant{
			{Id: "good", Label: "Slept well", Default: true},
			{Id: "restless", Label: "Restless"},
			{Id: "poor", Label: "Poor"},
		},
		Cycle: []string{"good", "restless", "poor"},
	},
	{
		Id:       "mood",
		Label:    "Mood",
		Category: CategoryWellbeing,
		Variants: []Variant{
			{Id: "happy", Label: "Happy", Default: true},
			{Id: "calm", Label: "Calm"},
			{Id: "anxious", Label: "Anxious"},
			{Id: "low", Label: "Low"},
		},
		Cycle: []string{"happy", "calm", "anxious", "low"},
	},
	{
		Id:          "photo",
		Label:       "Photo",
		Category:    CategoryMedia,
		ConsentGate: GatePhoto,
	},
	{
		Id:       "note",
		Label:    "Note",
		Category: CategoryWellbeing,
	},
}

var byId = func() map[string]*QuickAction {
	m := make(map[string]*QuickAction, len(actions))
	for i := range actions {
		m[actions[i].Id] = &actions[i]
	}
	return m
}()

// Actions returns every action in display order. Callers must not modify
// the returned values.
func Actions() []*QuickAction {
	out := make([]*QuickAction, len(actions))
	for i := range actions {
		out[i] = &actions[i]
	}
	return out
}

func Categories() []Category {
	var cats []Category
	seen := make(map[Category]bool)
	for _, a := range actions {
		if !seen[a.Category] {
			seen[a.Category] = true
			cats = append(cats, a.Category)
		}
	}
	return cats
}

func ActionByID(id string) (*QuickAction, bool) {
	a, ok := byId[id]
	return a, ok
}

func ActionsByCategory(c Category) []*QuickAction {
	var out []*QuickAction
	for i := range actions {
		if actions[i].Category == c {
			out = append(out, &actions[i])
		}
	}
	return out
}

// DefaultVariant returns the first variant flagged default.
func DefaultVariant(a *QuickAction) (Variant, bool) {
	for _, v := range a.Variants {
		if v.Default {
			return v, true
		}
	}
	return Variant{}, false
}

// NextCycleVariant returns the cycle entry following current, wrapping to
// the start. An unknown current yields the first entry; an action without
// a cycle yields false.
func NextCycleVariant(a *QuickAction, current string) (string, bool) {
	if !a.HasCycle() {
		return "", false
	}
	i := a.CycleIndex(current)
	if i < 0 {
		return a.Cycle[0], true
	}
	return a.Cycle[(i+1)%len(a.Cycle)], true
}

// Validate checks a set of action definitions for structural mistakes.
func Validate(list []QuickAction) error {
	var errs []error
	seen := make(map[string]bool)
	for _, a := range list {
		if a.Id == "" {
			errs = append(errs, fmt.Errorf("action %q: empty id", a.Label))
			continue
		}
		if seen[a.Id] {
			errs = append(errs, fmt.Errorf("action %q: duplicate id", a.Id))
		}
		seen[a.Id] = true

		defaults := 0
		for _, v := range a.Variants {
			if v.Default {
				defaults++
			}
		}
		if defaults > 1 {
			errs = append(errs, fmt.Errorf("action %q: %d default variants", a.Id, defaults))
		}
		for _, id := range a.Cycle {
			if _, ok := a.Variant(id); !ok {
				errs = append(errs, fmt.Errorf("action %q: cycle member %q is not a variant", a.Id, id))
			}
		}
		if a.ConsentGate != "" && a.ConsentGate != GatePhoto {
			errs = append(errs, fmt.Errorf("action %q: unknown consent gate %q", a.Id, a.ConsentGate))
		}
	}
	return errors.Join(errs...)
}

// ValidateBuiltin checks the built-in catalog.
func ValidateBuiltin() error {
	return Validate(actions)
}
