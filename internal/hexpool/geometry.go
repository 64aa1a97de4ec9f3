package hexpool

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// Geometry is a country's parsed map: the cell ids plus the feature
// collection they came from (used by the GeoJSON renderer).
type Geometry struct {
	IDs        []string
	Collection *geojson.FeatureCollection
}

// GeometrySource yields the static map geometry of a country. ok is false when
// the country has no geometry or it could not be read.
type GeometrySource interface {
	LoadCellGeometry(countryCode string) (g *Geometry, ok bool)
}

// FileStore reads GeoJSON geometry from the paths in the country set and
// keeps each parsed file for the life of the process.
type FileStore struct {
	countries domain.Countries

	mu    sync.Mutex
	cache map[string]*Geometry
}

// NewFileStore returns a FileStore over countries.
func NewFileStore(countries domain.Countries) *FileStore {
	return &FileStore{countries: countries, cache: make(map[string]*Geometry)}
}

// LoadCellGeometry implements GeometrySource. Failures are logged and
// reported as absent; they are retried on the next call.
func (s *FileStore) LoadCellGeometry(countryCode string) (*Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.cache[countryCode]; ok {
		return g, true
	}
	c, ok := s.countries.Get(countryCode)
	if !ok || strings.TrimSpace(c.GeometryPath) == "" {
		return nil, false
	}
	g, err := LoadGeometryFile(c.GeometryPath)
	if err != nil {
		lvl := zerolog.ErrorLevel
		if errors.Is(err, fs.ErrNotExist) {
			lvl = zerolog.WarnLevel
		}
		log.WithLevel(lvl).Err(err).Str("country", countryCode).Str("path", c.GeometryPath).Msg("map geometry unavailable")
		return nil, false
	}
	s.cache[countryCode] = g
	return g, true
}

// LoadGeometryFile parses a GeoJSON FeatureCollection from path.
func LoadGeometryFile(path string) (*Geometry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGeometry(raw)
}

// ParseGeometry decodes a FeatureCollection and extracts one id per feature,
// taken from the "hex_id" property, then the "id" property, then the feature
// id. Features without any id are skipped.
func ParseGeometry(raw []byte) (*Geometry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	seen := make(map[string]struct{}, len(fc.Features))
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		id, ok := FeatureID(f)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Geometry{IDs: ids, Collection: fc}, nil
}

// idProperties are the feature properties that can carry a cell id, in
// order of preference.
var idProperties = []string{"hex_id", "id"}

// FeatureID returns the cell id of f as a string.
func FeatureID(f *geojson.Feature) (string, bool) {
	if f == nil {
		return "", false
	}
	for _, key := range idProperties {
		if v, ok := f.Properties[key]; ok && v != nil {
			if s, ok := idString(v); ok {
				return s, true
			}
		}
	}
	if f.ID != nil {
		return idString(f.ID)
	}
	return "", false
}

func idString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
