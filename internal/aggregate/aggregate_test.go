package aggregate

import (
	"testing"
	"time"

	"github.com/npezzotti/go-carehome/internal/checklist"
	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/feed"
	"github.com/npezzotti/go-carehome/internal/stats"
	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tcases := []struct {
		completed int
		total     int
		want      int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 8, 13},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.want, Percent(tc.completed, tc.total), "%d/%d", tc.completed, tc.total)
	}
}

func TestAggregator(t *testing.T) {
	now := clock.NewManual(testutil.Today())
	fs := feed.NewStore(testutil.TestLogger(t), stats.NewPermissiveMock(), now.Clock(), nil)
	cs := checklist.NewStore(testutil.TestLogger(t), now.Clock())
	agg := New(fs, cs)

	edith := fs.AddResident(feed.NewResident{Name: "Edith"})
	walter := fs.AddResident(feed.NewResident{Name: "Walter"})

	breakfast, err := cs.AddTask(edith.Id, "Breakfast", "meal")
	require.NoError(t, err)
	_, err = cs.AddTask(edith.Id, "Morning meds", "meds")
	require.NoError(t, err)
	walk, err := cs.AddTask(edith.Id, "Walk", "")
	require.NoError(t, err)

	p, ok := agg.ResidentProgress(edith.Id)
	require.True(t, ok)
	assert.Equal(t, 0, p.Percent)
	assert.Nil(t, p.LastUpdate)

	_, err = fs.AddFeedItem(feed.NewFeedItem{ResidentId: edith.Id, Type: "meal"})
	require.NoError(t, err)
	require.NoError(t, cs.Complete(walk.Id))

	p, _ = agg.ResidentProgress(edith.Id)
	assert.Equal(t, 2, p.Completed, "expected logged meal and ticked walk to count")
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 67, p.Percent)
	require.NotNil(t, p.LastUpdate)

	f := agg.Facility()
	assert.Equal(t, 2, f.Residents)
	assert.Equal(t, 1, f.ResidentsUpdated)
	assert.Equal(t, 50, f.CoveragePercent)
	assert.Equal(t, 1, f.Today.TotalUpdates)
	assert.Equal(t, 67, f.TaskPercent)
	require.Len(t, f.Progress, 2)
	assert.Equal(t, walter.Id, f.Progress[1].ResidentId)

	now.Advance(24 * time.Hour)
	p, _ = agg.ResidentProgress(edith.Id)
	assert.Equal(t, 0, p.Completed, "expected a new day to reset progress without caching")
	assert.False(t, cs.CompletedOn(breakfast.Id, now.Now()))

	_, ok = agg.ResidentProgress("ghost")
	assert.False(t, ok)
}
