// Package app wires the stores, their persistence and the backend into one
// container built at startup and handed to whatever drives it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/npezzotti/go-carehome/internal/aggregate"
	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/checklist"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/directory"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/messaging"
	"github.com/npezzotti/go-carehome/internal/persist"
	"github.com/npezzotti/go-carehome/internal/quicklog"
	"github.com/npezzotti/go-carehome/internal/seed"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

const (
	KeyDirectory = "directory"
	KeyFeed      = "feed"
	KeyMessages  = "messages"
	KeyRecents   = "recent-actions"
	KeyChecklist = "checklist"
)

var ErrNotStaff = errors.New("only staff can log care")

type App struct {
	Log       *zap.Logger
	Clock     clock.Clock
	Backend   backend.Backend
	Directory *directory.Directory
	Feed      *feed.Store
	Messages  *messaging.Store
	Recents   *quicklog.Recents
	Checklist *checklist.Store
	Summary   *aggregate.Aggregator
	Persist   *persist.Adapter
}

// New builds every store and binds it to s. Nothing is loaded until Open.
func New(logger *zap.Logger, su stats.StatsProvider, s database.Store, now clock.Clock, be backend.Backend) *App {
	a := &App{
		Log:       logger,
		Clock:     now,
		Backend:   be,
		Directory: directory.New(logger.Named("directory")),
		Feed:      feed.NewStore(logger.Named("feed"), su, now, be),
		Messages:  messaging.NewStore(logger.Named("messages"), su, now, be),
		Recents:   quicklog.NewRecents(now),
		Checklist: checklist.NewStore(logger.Named("checklist"), now),
	}
	a.Summary = aggregate.New(a.Feed, a.Checklist)

	opts := func(legacy ...string) persist.BindOptions {
		return persist.BindOptions{LegacyKeys: legacy, Clock: now}
	}
	feedOpts := opts("care-feed-store-v1", "care-feed-store-v2")
	feedOpts.Migrations = persist.Migrations{1: feed.MigrateV1}

	a.Persist = persist.NewAdapter(logger.Named("persist"), su, s,
		persist.Bind(KeyDirectory, 1, persist.Stateful[directory.State](a.Directory), seed.Directory, opts("auth-store-v1")),
		persist.Bind(KeyFeed, feed.SchemaVersion, persist.Stateful[feed.State](a.Feed),
			func() feed.State { return seed.Feed(now()) }, feedOpts),
		persist.Bind(KeyMessages, 1, persist.Stateful[messaging.State](a.Messages),
			func() messaging.State { return seed.Messages(now()) }, opts("message-store-v1")),
		persist.Bind(KeyRecents, 1, persist.Stateful[[]types.RecentAction](a.Recents), seed.Recents, opts("recent-actions-v1")),
		persist.Bind(KeyChecklist, 1, persist.Stateful[checklist.State](a.Checklist), seed.Checklist, opts()),
	)
	return a
}

// Open loads saved state, seeding anything missing, and starts background
// persistence.
func (a *App) Open(ctx context.Context) error {
	if err := a.Persist.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	a.Persist.Start()
	return nil
}

// NewSession starts a quick-log composition for residentId, authored by the
// current user.
func (a *App) NewSession(residentId string) (*quicklog.Session, error) {
	u, ok := a.Directory.CurrentUser()
	if !ok || u.Role != types.RoleStaff {
		return nil, ErrNotStaff
	}
	if _, ok := a.Feed.Resident(residentId); !ok {
		return nil, types.NewUnknownResidentError(residentId)
	}
	return quicklog.NewSession(a.Log.Named("quicklog"), a.Feed, a.Recents, residentId, u.Id), nil
}

// VisibleResidents is what the current user may browse: every resident for
// staff, linked residents for family.
func (a *App) VisibleResidents() []types.Resident {
	u, ok := a.Directory.CurrentUser()
	if !ok {
		return nil
	}
	if u.Role == types.RoleStaff {
		return a.Feed.Residents()
	}
	return a.Feed.ResidentsForFamilyMember(u.Id)
}

// Reset wipes saved state and returns every store to the seeded dataset.
func (a *App) Reset(ctx context.Context) error {
	if err := a.Persist.Reset(ctx); err != nil {
		return err
	}
	return a.Persist.Flush(ctx)
}

func (a *App) Close(ctx context.Context) error {
	flushErr := a.Persist.Flush(ctx)
	return errors.Join(flushErr, a.Persist.Close())
}
