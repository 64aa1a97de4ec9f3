// Package services – StatsService
//
// Read models for the statistics pages: prayed counts per party, the prayed
// timeline, and the overall progress summary.
package services

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/repo"
	"github.com/tbourn/go-prayer-queue/internal/utils"
)

// OverallScope selects every country in Timeline.
const OverallScope = "overall"

// PartyStat is one bar of the party chart.
type PartyStat struct {
	ShortName string `json:"short_name"`
	Color     string `json:"color"`
	Count     int64  `json:"count"`
}

// TimelineEntry is one prayed event.
type TimelineEntry struct {
	CandidateID uint      `json:"candidate_id"`
	PersonName  string    `json:"person_name"`
	PostLabel   *string   `json:"post_label"`
	Party       string    `json:"party"`
	CountryCode string    `json:"country_code"`
	CountryName string    `json:"country_name"`
	PrayedAt    time.Time `json:"prayed_at"`
	Pretty      string    `json:"pretty"`
}

// CountrySummary is the per-country line of Summary.
type CountrySummary struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Flag   string `json:"flag,omitempty"`
	Queued int64  `json:"queued"`
	Prayed int64  `json:"prayed"`
	Target int    `json:"target"`
}

// Summary is the home-page progress block.
type Summary struct {
	Queued    int64            `json:"queued"`
	Prayed    int64            `json:"prayed"`
	Remaining int64            `json:"remaining"`
	Countries []CountrySummary `json:"countries"`
}

// TargetSource reports per-country reseed targets; QueueService.RosterTargets
// satisfies it.
type TargetSource interface {
	RosterTargets(ctx context.Context) map[string]int
}

// StatsService builds the statistics read models.
type StatsService struct {
	DB        *gorm.DB
	Repo      CandidateRepo
	Countries domain.Countries
	Targets   TargetSource

	Now func() time.Time
}

// PartyStatistics groups prayed candidates of country by the party's short
// name and attaches its colour, largest group first.
func (s *StatsService) PartyStatistics(ctx context.Context, country string) ([]PartyStat, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "PartyStatistics",
		trace.WithAttributes(attribute.String("country", country)),
	)
	defer span.End()

	c, ok := s.Countries.Get(country)
	if !ok {
		return nil, unknownCountry(country)
	}
	rows, err := repo.PartyCounts(ctx, s.DB, country)
	if err != nil {
		return nil, err
	}

	byShort := make(map[string]*PartyStat)
	var order []string
	for _, r := range rows {
		info := c.Party(r.Party)
		st, seen := byShort[info.ShortName]
		if !seen {
			st = &PartyStat{ShortName: info.ShortName, Color: info.Color}
			byShort[info.ShortName] = st
			order = append(order, info.ShortName)
		}
		st.Count += r.Count
	}
	out := make([]PartyStat, 0, len(order))
	for _, name := range order {
		out = append(out, *byShort[name])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// Timeline lists prayed events oldest first, for one country or for
// OverallScope.
func (s *StatsService) Timeline(ctx context.Context, scope string) ([]TimelineEntry, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Timeline",
		trace.WithAttributes(attribute.String("scope", scope)),
	)
	defer span.End()

	country := scope
	if scope == OverallScope || scope == "" {
		country = ""
	} else if _, ok := s.Countries.Get(scope); !ok {
		return nil, unknownCountry(scope)
	}

	prayed, err := s.Repo.ListByStatus(ctx, s.DB, domain.StatusPrayed, country)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]TimelineEntry, 0, len(prayed))
	for i := len(prayed) - 1; i >= 0; i-- {
		c := prayed[i]
		out = append(out, TimelineEntry{
			CandidateID: c.ID,
			PersonName:  c.PersonName,
			PostLabel:   c.PostLabel,
			Party:       c.Party,
			CountryCode: c.CountryCode,
			CountryName: s.countryName(c.CountryCode),
			PrayedAt:    c.StatusTimestamp,
			Pretty:      utils.FormatPrettyTimestamp(c.StatusTimestamp, now),
		})
	}
	return out, nil
}

// Summary reports queue size, prayed total and remaining, where remaining is
// the sum of per-country targets minus everyone prayed for (never negative).
func (s *StatsService) Summary(ctx context.Context) (Summary, error) {
	tr := otel.Tracer("services/StatsService")
	ctx, span := tr.Start(ctx, "Summary")
	defer span.End()

	var targets map[string]int
	if s.Targets != nil {
		targets = s.Targets.RosterTargets(ctx)
	}

	var out Summary
	var total int64
	for _, c := range s.Countries {
		q, err := s.Repo.CountByStatus(ctx, s.DB, domain.StatusQueued, c.Code)
		if err != nil {
			return Summary{}, err
		}
		p, err := s.Repo.CountByStatus(ctx, s.DB, domain.StatusPrayed, c.Code)
		if err != nil {
			return Summary{}, err
		}
		out.Countries = append(out.Countries, CountrySummary{
			Code: c.Code, Name: s.countryName(c.Code), Flag: c.Flag,
			Queued: q, Prayed: p, Target: targets[c.Code],
		})
		total += int64(targets[c.Code])
	}

	var err error
	if out.Queued, err = s.Repo.CountByStatus(ctx, s.DB, domain.StatusQueued, ""); err != nil {
		return Summary{}, err
	}
	if out.Prayed, err = s.Repo.CountByStatus(ctx, s.DB, domain.StatusPrayed, ""); err != nil {
		return Summary{}, err
	}
	out.Remaining = max(total-out.Prayed, 0)
	return out, nil
}

func (s *StatsService) countryName(code string) string {
	if c, ok := s.Countries.Get(code); ok && c.Name != "" && c.Name != c.Code {
		return c.Name
	}
	// Casers are stateful, so one per call.
	return cases.Title(language.English).String(code)
}

func (s *StatsService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}
