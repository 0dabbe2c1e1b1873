// Package checklist tracks the recurring daily care tasks set up for each
// resident and when each was last ticked off.
package checklist

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/ids"
	"github.com/npezzotti/go-carehome/internal/observe"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

var ErrTaskNotFound = errors.New("task not found")

type State struct {
	Tasks       []types.ChecklistTask `json:"tasks"`
	CompletedAt map[string]time.Time  `json:"completed_at"`
}

type Store struct {
	log *zap.Logger
	now clock.Clock
	observe.Hub

	mu          sync.RWMutex
	tasks       []types.ChecklistTask
	completedAt map[string]time.Time
}

func NewStore(logger *zap.Logger, now clock.Clock) *Store {
	return &Store{
		log:         logger,
		now:         now,
		completedAt: make(map[string]time.Time),
	}
}

// AddTask creates a daily task. actionId links it to a quick action so
// logging that action also counts as doing the task.
func (s *Store) AddTask(residentId, label, actionId string) (types.ChecklistTask, error) {
	if residentId == "" {
		return types.ChecklistTask{}, types.NewValidationError("resident_id", "cannot be empty")
	}
	if strings.TrimSpace(label) == "" {
		return types.ChecklistTask{}, types.NewValidationError("label", "cannot be empty")
	}

	t := types.ChecklistTask{
		Id:         ids.New("task_"),
		ResidentId: residentId,
		Label:      strings.TrimSpace(label),
		ActionId:   actionId,
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	s.Publish()
	return t, nil
}

// Complete marks the task done for today.
func (s *Store) Complete(taskId string) error {
	s.mu.Lock()
	found := false
	for _, t := range s.tasks {
		if t.Id == taskId {
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	s.completedAt[taskId] = s.now()
	s.mu.Unlock()

	s.log.Debug("task_completed", zap.String("task_id", taskId))
	s.Publish()
	return nil
}

// Tasks lists a resident's tasks in creation order.
func (s *Store) Tasks(residentId string) []types.ChecklistTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.ChecklistTask
	for _, t := range s.tasks {
		if t.ResidentId == residentId {
			out = append(out, t)
		}
	}
	return out
}

// CompletedOn reports whether taskId was ticked off on day's calendar date.
func (s *Store) CompletedOn(taskId string, day time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.completedAt[taskId]
	return ok && clock.SameDay(at, day)
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Tasks:       append([]types.ChecklistTask{}, s.tasks...),
		CompletedAt: make(map[string]time.Time, len(s.completedAt)),
	}
	for k, v := range s.completedAt {
		st.CompletedAt[k] = v
	}
	return st
}

func (s *Store) Restore(st State) {
	s.mu.Lock()
	s.tasks = append([]types.ChecklistTask{}, st.Tasks...)
	s.completedAt = make(map[string]time.Time, len(st.CompletedAt))
	for k, v := range st.CompletedAt {
		s.completedAt[k] = v
	}
	s.mu.Unlock()

	s.Publish()
}
