// Package roster reads per-country candidate rosters from CSV files and
// normalises each record into a domain.RosterRow.
//
// Normalisation happens here and nowhere else: surrounding whitespace is
// trimmed, a missing party becomes "Other", and blank post labels or image
// URLs become nil. Rows without a person name are kept so the seeding pass
// can count and log them.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// ErrSourceUnavailable wraps failures to open or parse a roster source.
var ErrSourceUnavailable = errors.New("roster source unavailable")

// Column names recognised in the header row. Unknown columns are ignored.
const (
	ColPersonName = "person_name"
	ColPostLabel  = "post_label"
	ColParty      = "party"
	ColImageURL   = "image_url"
)

// CSVSource resolves a country code to its roster file through the
// configured country set.
type CSVSource struct {
	Countries domain.Countries
}

// NewCSVSource returns a CSVSource over countries.
func NewCSVSource(countries domain.Countries) *CSVSource {
	return &CSVSource{Countries: countries}
}

// FetchRoster loads the roster of countryCode. A country without a roster
// path or a missing file yields an empty result and a warning; a file that
// exists but cannot be parsed returns an error wrapping ErrSourceUnavailable.
func (s *CSVSource) FetchRoster(ctx context.Context, countryCode string) ([]domain.RosterRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := s.Countries.Get(countryCode)
	if !ok || strings.TrimSpace(c.RosterPath) == "" {
		log.Warn().Str("country", countryCode).Msg("no roster configured")
		return nil, nil
	}
	rows, err := LoadFile(c.RosterPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("country", countryCode).Str("path", c.RosterPath).Msg("roster file not found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Str("country", countryCode).Int("rows", len(rows)).Msg("roster loaded")
	return rows, nil
}

// LoadFile parses the CSV roster at path.
func LoadFile(path string) ([]domain.RosterRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a roster with a header row from r. The person_name column is
// required; the others are optional.
func Parse(r io.Reader) ([]domain.RosterRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrSourceUnavailable, err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx[ColPersonName]; !ok {
		return nil, fmt.Errorf("%w: missing %q column", ErrSourceUnavailable, ColPersonName)
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []domain.RosterRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		party := field(rec, ColParty)
		if party == "" {
			party = domain.DefaultParty
		}
		out = append(out, domain.RosterRow{
			PersonName: field(rec, ColPersonName),
			PostLabel:  domain.StringPtr(field(rec, ColPostLabel)),
			Party:      party,
			ImageURL:   domain.StringPtr(field(rec, ColImageURL)),
		})
	}
	return out, nil
}
