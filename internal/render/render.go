// Package render turns the current prayed/queued lists of a country into a
// map artefact for the front end. The web layer calls a Renderer after every
// mutation; a failed render is logged by the caller and never fails the
// request.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/hexpool"
)

// Cell states written to the "state" property.
const (
	StatePrayed = "prayed"
	StateQueued = "queued"
	StateOpen   = "open"
)

// ErrNoGeometry is returned when a country has no map to render.
var ErrNoGeometry = errors.New("no map geometry")

// Renderer draws one country's map.
type Renderer interface {
	Render(ctx context.Context, countryCode string, prayed, queued []domain.Candidate) error
}

// NopRenderer renders nothing.
type NopRenderer struct{}

func (NopRenderer) Render(context.Context, string, []domain.Candidate, []domain.Candidate) error {
	return nil
}

// GeoJSONRenderer writes <OutDir>/<country>.geojson: the country's geometry
// with every feature annotated with "state" and, when occupied,
// "person_name", "party" and "candidate_id".
//
// Random-allocation countries are matched on the feature's cell id; the
// others on the feature's "post_label" property.
type GeoJSONRenderer struct {
	Countries domain.Countries
	Geometry  hexpool.GeometrySource
	OutDir    string
}

// Render implements Renderer. The file is replaced atomically.
func (r *GeoJSONRenderer) Render(ctx context.Context, countryCode string, prayed, queued []domain.Candidate) error {
	tr := otel.Tracer("render/GeoJSONRenderer")
	_, span := tr.Start(ctx, "Render",
		trace.WithAttributes(
			attribute.String("country", countryCode),
			attribute.Int("prayed", len(prayed)),
			attribute.Int("queued", len(queued)),
		),
	)
	defer span.End()

	start := time.Now()
	country, ok := r.Countries.Get(countryCode)
	if !ok {
		return fmt.Errorf("render %s: unknown country", countryCode)
	}
	g, ok := r.Geometry.LoadCellGeometry(countryCode)
	if !ok || g == nil || g.Collection == nil {
		return fmt.Errorf("render %s: %w", countryCode, ErrNoGeometry)
	}

	fc := Annotate(g.Collection, country.UsesRandomAllocation, prayed, queued)
	raw, err := fc.MarshalJSON()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("render %s: %w", countryCode, err)
	}
	path := filepath.Join(r.OutDir, countryCode+".geojson")
	if err := writeAtomic(path, raw); err != nil {
		span.RecordError(err)
		return fmt.Errorf("render %s: %w", countryCode, err)
	}

	log.Debug().
		Str("country", countryCode).
		Str("path", path).
		Dur("took", time.Since(start)).
		Msg("map rendered")
	return nil
}

// Annotate returns a copy of src whose features carry the occupancy of each
// cell. src is left untouched. A prayed holder wins over a queued one.
func Annotate(src *geojson.FeatureCollection, byHex bool, prayed, queued []domain.Candidate) *geojson.FeatureCollection {
	holders := make(map[string]domain.Candidate, len(prayed)+len(queued))
	key := func(c domain.Candidate) (string, bool) {
		if byHex {
			if c.HexID == nil {
				return "", false
			}
			return *c.HexID, true
		}
		if l := domain.NormalizePostLabel(c.PostLabel); l != nil {
			return *l, true
		}
		return "", false
	}
	for _, c := range queued {
		if k, ok := key(c); ok {
			holders[k] = c
		}
	}
	for _, c := range prayed {
		if k, ok := key(c); ok {
			holders[k] = c
		}
	}

	out := geojson.NewFeatureCollection()
	for _, f := range src.Features {
		nf := geojson.NewFeature(f.Geometry)
		nf.ID = f.ID
		nf.BBox = f.BBox
		nf.Properties = f.Properties.Clone()
		if nf.Properties == nil {
			nf.Properties = geojson.Properties{}
		}

		var k string
		var ok bool
		if byHex {
			k, ok = hexpool.FeatureID(f)
		} else {
			k = strings.TrimSpace(f.Properties.MustString("post_label", ""))
			ok = k != ""
		}

		nf.Properties["state"] = StateOpen
		if c, held := holders[k]; ok && held {
			nf.Properties["state"] = string(c.Status)
			nf.Properties["person_name"] = c.PersonName
			nf.Properties["party"] = c.Party
			nf.Properties["candidate_id"] = c.ID
		}
		out.Append(nf)
	}
	return out
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
