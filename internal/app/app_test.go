package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-prayer-queue/internal/config"
	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/render"
)

const rosterCSV = `person_name,post_label,party,image_url
Ada,North,Blue,
Ben,South,Green,https://img.example/ben.png
`

const countriesYAML = `countries:
  - code: atlantis
    name: Atlantis
    roster_path: atlantis.csv
    geometry_path: atlantis.geojson
    uses_random_allocation: true
  - code: lemuria
    name: Lemuria
    roster_path: lemuria.csv
`

func writeData(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atlantis.csv"), []byte(rosterCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lemuria.csv"), []byte("person_name\nCy\n"), 0o600))

	fc := geojson.NewFeatureCollection()
	for i, id := range []string{"h1", "h2", "h3"} {
		f := geojson.NewFeature(orb.Point{float64(i), 0})
		f.Properties["id"] = id
		fc.Append(f)
	}
	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atlantis.geojson"), raw, 0o600))

	cf := filepath.Join(dir, "countries.yaml")
	require.NoError(t, os.WriteFile(cf, []byte(countriesYAML), 0o600))

	return config.Config{
		DBDriver:          "sqlite",
		DBPath:            filepath.Join(dir, "prayer.db"),
		DataDir:           dir,
		CountriesFile:     cf,
		MapOutputDir:      filepath.Join(dir, "maps"),
		FallbackThumbnail: "heart.png",
		ReseedKeyTTL:      time.Minute,
	}
}

func TestOpen_ReseedAndRender(t *testing.T) {
	cfg := writeData(t)
	a, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	seeded, res, err := a.Queue.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, 3, res.Inserted)

	queued, err := a.Prayer.ListQueued(ctx, "atlantis")
	require.NoError(t, err)
	require.Len(t, queued, 2)
	for _, c := range queued {
		require.NotNil(t, c.HexID, "random allocation must draw a cell")
		require.NotNil(t, c.Thumbnail)
		if c.PersonName == "Ada" {
			assert.Equal(t, "heart.png", *c.Thumbnail)
		}
	}

	_, changed, err := a.Prayer.MarkPrayed(ctx, queued[0].ID)
	require.NoError(t, err)
	require.True(t, changed)

	// Lemuria has no geometry: skipped, not an error.
	require.NoError(t, a.RenderAll(ctx))

	raw, err := os.ReadFile(filepath.Join(cfg.MapOutputDir, "atlantis.geojson"))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)

	states := map[string]int{}
	for _, f := range fc.Features {
		states[f.Properties.MustString("state", "")]++
	}
	assert.Equal(t, map[string]int{render.StatePrayed: 1, render.StateQueued: 1, render.StateOpen: 1}, states)

	_, err = os.Stat(filepath.Join(cfg.MapOutputDir, "lemuria.geojson"))
	assert.True(t, os.IsNotExist(err))
}

func TestNew_NoMapDirUsesNopRenderer(t *testing.T) {
	cfg := writeData(t)
	cfg.MapOutputDir = ""
	a, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, render.NopRenderer{}, a.Renderer)
	require.NoError(t, a.RenderAll(context.Background()))
}

func TestOpen_Errors(t *testing.T) {
	cfg := writeData(t)
	cfg.DBDriver = "mysql"
	_, err := Open(cfg)
	assert.ErrorContains(t, err, "unsupported db driver")

	cfg = writeData(t)
	cfg.CountriesFile = filepath.Join(cfg.DataDir, "missing.yaml")
	_, err = Open(cfg)
	assert.Error(t, err)
}

type failingRenderer struct{ calls int }

func (f *failingRenderer) Render(context.Context, string, []domain.Candidate, []domain.Candidate) error {
	f.calls++
	return os.ErrPermission
}

func TestRenderAll_ReportsFirstFailureAfterTryingAll(t *testing.T) {
	cfg := writeData(t)
	a, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	fr := &failingRenderer{}
	a.Renderer = fr
	assert.ErrorIs(t, a.RenderAll(context.Background()), os.ErrPermission)
	assert.Equal(t, 2, fr.calls)
}
