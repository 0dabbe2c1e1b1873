package directory

import (
	"errors"
	"sync"

	"github.com/npezzotti/go-carehome/internal/observe"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

var ErrUnknownUser = errors.New("unknown user")

// View is the landing screen a role starts on.
type View string

const (
	ViewQuickLog View = "quicklog"
	ViewFeed     View = "feed"
)

// State is the persisted form of the directory.
type State struct {
	Users         []types.User `json:"users"`
	CurrentUserId string       `json:"current_user_id,omitempty"`
}

type Directory struct {
	log *zap.Logger
	observe.Hub

	mu        sync.RWMutex
	users     map[string]types.User
	order     []string
	currentId string
}

func New(logger *zap.Logger) *Directory {
	return &Directory{
		log:   logger,
		users: make(map[string]types.User),
	}
}

// AddUser registers u. Users are immutable once added; adding an existing
// id is rejected.
func (d *Directory) AddUser(u types.User) error {
	if u.Id == "" {
		return types.NewValidationError("id", "cannot be empty")
	}
	if !u.Role.Valid() {
		return types.NewValidationError("role", "must be staff or family")
	}

	d.mu.Lock()
	if _, ok := d.users[u.Id]; ok {
		d.mu.Unlock()
		return types.NewValidationError("id", "user already exists")
	}
	d.users[u.Id] = u
	d.order = append(d.order, u.Id)
	d.mu.Unlock()

	d.Publish()
	return nil
}

func (d *Directory) User(id string) (types.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}

func (d *Directory) Users() []types.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.users[id])
	}
	return out
}

func (d *Directory) UsersByRole(role types.Role) []types.User {
	var out []types.User
	for _, u := range d.Users() {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

func (d *Directory) CurrentUser() (types.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[d.currentId]
	return u, ok
}

func (d *Directory) SetCurrentUser(id string) error {
	d.mu.Lock()
	if _, ok := d.users[id]; !ok {
		d.mu.Unlock()
		return ErrUnknownUser
	}
	d.currentId = id
	d.mu.Unlock()

	d.log.Debug("current_user_changed", zap.String("user_id", id))
	d.Publish()
	return nil
}

// SwitchRole makes the first registered user with role current.
func (d *Directory) SwitchRole(role types.Role) (types.User, error) {
	users := d.UsersByRole(role)
	if len(users) == 0 {
		return types.User{}, ErrUnknownUser
	}
	if err := d.SetCurrentUser(users[0].Id); err != nil {
		return types.User{}, err
	}
	return users[0], nil
}

// DefaultView is where a user of role lands: staff log care, family read
// the feed.
func DefaultView(role types.Role) View {
	if role == types.RoleStaff {
		return ViewQuickLog
	}
	return ViewFeed
}

func (d *Directory) State() State {
	return State{Users: d.Users(), CurrentUserId: d.currentUserId()}
}

func (d *Directory) currentUserId() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentId
}

func (d *Directory) Restore(s State) {
	d.mu.Lock()
	d.users = make(map[string]types.User, len(s.Users))
	d.order = d.order[:0]
	for _, u := range s.Users {
		if _, dup := d.users[u.Id]; dup {
			continue
		}
		d.users[u.Id] = u
		d.order = append(d.order, u.Id)
	}
	d.currentId = s.CurrentUserId
	d.mu.Unlock()

	d.Publish()
}
