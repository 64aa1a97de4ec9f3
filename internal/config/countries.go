package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// countriesFile is the on-disk shape of COUNTRIES_FILE.
type countriesFile struct {
	Countries []domain.Country `yaml:"countries"`
}

// DefaultCountries returns the built-in country set with roster and geometry
// paths rooted at dataDir.
func DefaultCountries(dataDir string) domain.Countries {
	israelCap, iranCap := 120, 290
	return domain.Countries{
		{
			Code:                 "israel",
			Name:                 "Israel",
			Flag:                 "🇮🇱",
			RosterPath:           filepath.Join(dataDir, "20221101_israel.csv"),
			GeometryPath:         filepath.Join(dataDir, "ISR_Parliament_120.geojson"),
			RepresentativeCap:    &israelCap,
			UsesRandomAllocation: true,
			Parties: map[string]domain.PartyInfo{
				"Likud":      {ShortName: "Likud", Color: "#00387A"},
				"Yesh Atid":  {ShortName: "Yesh Atid", Color: "#ADD8E6"},
				"Shas":       {ShortName: "Shas", Color: "#FFFF00"},
				"Resilience": {ShortName: "Resilience", Color: "#0000FF"},
				"Labor":      {ShortName: "Labor", Color: "#FF0000"},
				"Other":      {ShortName: "Other", Color: "#CCCCCC"},
			},
		},
		{
			Code:                 "iran",
			Name:                 "Iran",
			Flag:                 "🇮🇷",
			RosterPath:           filepath.Join(dataDir, "20240510_iran.csv"),
			GeometryPath:         filepath.Join(dataDir, "IRN_IslamicParliamentofIran_290_v2.geojson"),
			RepresentativeCap:    &iranCap,
			UsesRandomAllocation: true,
			Parties: map[string]domain.PartyInfo{
				"Principlist": {ShortName: "Principlist", Color: "#006400"},
				"Reformists":  {ShortName: "Reformists", Color: "#90EE90"},
				"Independent": {ShortName: "Independent", Color: "#808080"},
				"Other":       {ShortName: "Other", Color: "#CCCCCC"},
			},
		},
	}
}

// LoadCountries returns the country set for cfg: the YAML file named by
// COUNTRIES_FILE when set, otherwise DefaultCountries. Relative roster and
// geometry paths in the file are resolved against DATA_DIR.
func LoadCountries(cfg Config) (domain.Countries, error) {
	if strings.TrimSpace(cfg.CountriesFile) == "" {
		return DefaultCountries(cfg.DataDir), nil
	}
	raw, err := os.ReadFile(cfg.CountriesFile)
	if err != nil {
		return nil, fmt.Errorf("read countries file: %w", err)
	}
	return ParseCountries(raw, cfg.DataDir)
}

// ParseCountries decodes a YAML country document and validates it.
func ParseCountries(raw []byte, dataDir string) (domain.Countries, error) {
	var f countriesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse countries: %w", err)
	}
	if len(f.Countries) == 0 {
		return nil, errors.New("countries: at least one country is required")
	}

	seen := make(map[string]struct{}, len(f.Countries))
	out := make(domain.Countries, 0, len(f.Countries))
	for i, c := range f.Countries {
		c.Code = strings.ToLower(strings.TrimSpace(c.Code))
		if c.Code == "" {
			return nil, fmt.Errorf("countries[%d]: code is required", i)
		}
		if _, dup := seen[c.Code]; dup {
			return nil, fmt.Errorf("countries[%d]: duplicate code %q", i, c.Code)
		}
		seen[c.Code] = struct{}{}
		if c.RepresentativeCap != nil && *c.RepresentativeCap < 0 {
			return nil, fmt.Errorf("countries[%d]: representative_cap must be >= 0", i)
		}
		if c.Name == "" {
			c.Name = c.Code
		}
		c.RosterPath = resolve(dataDir, c.RosterPath)
		c.GeometryPath = resolve(dataDir, c.GeometryPath)
		out = append(out, c)
	}
	return out, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
