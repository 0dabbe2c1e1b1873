package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-carehome/internal/aggregate"
	"github.com/npezzotti/go-carehome/internal/backend"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/npezzotti/go-carehome/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSummary aggregate.Facility

func (f fixedSummary) Facility() aggregate.Facility {
	return aggregate.Facility(f)
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, channel string, payload any) error {
	return errors.New("offline")
}

var summary = fixedSummary{
	Date: testutil.Today(),
	Today: feed.TodayStats{
		TotalUpdates: 3,
		ByType:       map[string]int{"meal": 2, "meds": 1},
		ResidentsWithNoUpdate: []types.Resident{
			{Id: "r3", Name: "Rose"},
			{Id: "r2", Name: "Bert"},
		},
	},
	CoveragePercent: 33,
	TaskPercent:     25,
}

func TestBuild(t *testing.T) {
	d := Build(aggregate.Facility(summary))
	assert.Equal(t, 3, d.TotalUpdates)
	assert.Equal(t, []string{"Bert", "Rose"}, d.NoUpdates)
	assert.Equal(t, 33, d.CoveragePercent)
	assert.Equal(t, map[string]int{"meal": 2, "meds": 1}, d.ByType)
}

func TestNewScheduler(t *testing.T) {
	_, err := NewScheduler(testutil.TestLogger(t), summary, nil, "not a cron")
	assert.Error(t, err)

	s, err := NewScheduler(testutil.TestLogger(t), summary, nil, "0 18 * * *")
	require.NoError(t, err)

	from := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	next, err := s.Next(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 18, 0, 0, 0, time.UTC), next)

	next, err = s.Next(next)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC), next)
}

func TestRunOncePublishes(t *testing.T) {
	be := backend.NewMemory(testutil.TestLogger(t))
	var got []Digest
	be.Subscribe(Channel, func(e backend.Event) {
		got = append(got, e.Payload.(Digest))
	})

	s, err := NewScheduler(testutil.TestLogger(t), summary, be, "@daily")
	require.NoError(t, err)

	d, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, d, got[0])

	s.pub = failingPublisher{}
	_, err = s.RunOnce(context.Background())
	assert.ErrorContains(t, err, "offline")
}

func TestRunStopsOnCancel(t *testing.T) {
	s, err := NewScheduler(testutil.TestLogger(t), summary, nil, "@yearly")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected scheduler to stop after cancel")
	}
}
