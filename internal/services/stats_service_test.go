package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

func statsCountries() domain.Countries {
	return domain.Countries{
		{
			Code: "israel", Name: "Israel", RepresentativeCap: capOf(3),
			Parties: map[string]domain.PartyInfo{
				"Likud":             {ShortName: "Likud", Color: "#1f4fa3"},
				"Likud Yisrael":     {ShortName: "Likud", Color: "#1f4fa3"},
				"Yesh Atid":         {ShortName: "Yesh Atid", Color: "#00b3e6"},
				domain.DefaultParty: {ShortName: "Other", Color: "#999999"},
			},
		},
		{Code: "iran", Name: "iran"},
	}
}

func prayAll(t *testing.T, f *fixture) {
	t.Helper()
	queued, err := f.prayer.ListQueued(context.Background(), "")
	require.NoError(t, err)
	for _, c := range queued {
		f.clock.Advance(time.Minute)
		_, ok, err := f.prayer.MarkPrayed(context.Background(), c.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestPartyStatistics_MergesByShortName(t *testing.T) {
	f := newFixture(t, statsCountries(), nil)
	f.queue.Countries[0].RepresentativeCap = nil
	f.rosters.rows["israel"] = []domain.RosterRow{
		{PersonName: "A", Party: "Likud"},
		{PersonName: "B", Party: "Likud Yisrael"},
		{PersonName: "C", Party: "Yesh Atid"},
		{PersonName: "D", Party: "Unlisted"},
	}
	_, err := f.queue.Reseed(context.Background())
	require.NoError(t, err)
	prayAll(t, f)

	got, err := f.stats.PartyStatistics(context.Background(), "israel")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, PartyStat{ShortName: "Likud", Color: "#1f4fa3", Count: 2}, got[0])

	var other PartyStat
	for _, s := range got {
		if s.ShortName == "Other" {
			other = s
		}
	}
	assert.Equal(t, int64(1), other.Count)
	assert.Equal(t, "#999999", other.Color)

	_, err = f.stats.PartyStatistics(context.Background(), "mars")
	assert.True(t, errors.Is(err, ErrUnknownCountry))
}

func TestTimeline_OldestFirstWithScopes(t *testing.T) {
	f := newFixture(t, statsCountries(), nil)
	f.rosters.rows["israel"] = names("A", "B")
	f.rosters.rows["iran"] = names("C")
	_, err := f.queue.Reseed(context.Background())
	require.NoError(t, err)
	prayAll(t, f)

	all, err := f.stats.Timeline(context.Background(), OverallScope)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].PrayedAt.Before(all[i-1].PrayedAt), "timeline must be oldest first")
	}
	assert.NotEmpty(t, all[0].Pretty)

	iran, err := f.stats.Timeline(context.Background(), "iran")
	require.NoError(t, err)
	require.Len(t, iran, 1)
	assert.Equal(t, "C", iran[0].PersonName)
	assert.Equal(t, "Iran", iran[0].CountryName)

	_, err = f.stats.Timeline(context.Background(), "mars")
	assert.ErrorIs(t, err, ErrUnknownCountry)
}

func TestSummary_RemainingNeverNegative(t *testing.T) {
	f := newFixture(t, statsCountries(), nil)
	f.rosters.rows["israel"] = names("A", "B", "C", "D")
	f.rosters.rows["iran"] = names("E")
	_, err := f.queue.Reseed(context.Background())
	require.NoError(t, err)

	sum, err := f.stats.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Queued)
	assert.Equal(t, int64(0), sum.Prayed)
	assert.Equal(t, int64(4), sum.Remaining)
	require.Len(t, sum.Countries, 2)
	assert.Equal(t, 3, sum.Countries[0].Target)
	assert.Equal(t, "Israel", sum.Countries[0].Name)

	prayAll(t, f)
	// Shrinking the roster below what was already prayed clamps at zero.
	f.rosters.rows["israel"] = names("A")
	sum, err = f.stats.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Prayed)
	assert.Equal(t, int64(0), sum.Remaining)
}
