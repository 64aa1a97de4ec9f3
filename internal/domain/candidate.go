// Package domain defines the persistence models for prayer candidates and
// the value types that travel between the roster loader, the seeding engine
// and the HTTP layer. Candidate is mapped with GORM and is the single source
// of truth for queue state.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Status is the lifecycle state of a Candidate.
type Status string

const (
	// StatusQueued marks a candidate awaiting the "prayed" action.
	StatusQueued Status = "queued"
	// StatusPrayed marks a candidate that has been prayed for.
	StatusPrayed Status = "prayed"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool { return s == StatusQueued || s == StatusPrayed }

// DefaultParty is stored when a roster row carries no party.
const DefaultParty = "Other"

// Candidate is one trackable office-holder for a country.
//
// Identity is the natural key (PersonName, PostLabel, CountryCode). Because SQL
// treats NULLs as distinct, the unique index is built over PostLabelKey, which
// holds the normalised label ("" when PostLabel is nil). PostLabelKey is kept
// in sync by the BeforeSave hook.
//
// A partial unique index on (CountryCode, HexID) keeps a map cell from being
// held by two candidates of the same country, whatever their status.
//
// Fields:
//   - ID: surrogate key assigned by the database, also the queue order.
//   - Status / StatusTimestamp: current state and when it last changed.
//   - InitialAddTimestamp: first insertion time, never updated.
//   - HexID: map cell held by the candidate (random-allocation countries only).
type Candidate struct {
	ID                  uint      `json:"id"                    gorm:"primaryKey;autoIncrement"`
	PersonName          string    `json:"person_name"           gorm:"type:varchar(255);not null;uniqueIndex:ux_candidate_identity,priority:1"`
	PostLabel           *string   `json:"post_label"            gorm:"type:varchar(255)"`
	PostLabelKey        string    `json:"-"                     gorm:"type:varchar(255);not null;default:'';uniqueIndex:ux_candidate_identity,priority:2"`
	CountryCode         string    `json:"country_code"          gorm:"type:varchar(64);not null;uniqueIndex:ux_candidate_identity,priority:3;index:idx_candidate_country_status,priority:1;uniqueIndex:ux_candidate_hex,priority:1,where:hex_id IS NOT NULL"`
	Party               string    `json:"party"                 gorm:"type:varchar(255);not null;default:'Other'"`
	Thumbnail           *string   `json:"thumbnail,omitempty"   gorm:"type:text"`
	Status              Status    `json:"status"                gorm:"type:varchar(16);not null;check:chk_candidate_status,status IN ('queued','prayed');index:idx_candidate_country_status,priority:2"`
	StatusTimestamp     time.Time `json:"status_timestamp"      gorm:"not null;index"`
	InitialAddTimestamp time.Time `json:"initial_add_timestamp" gorm:"not null"`
	HexID               *string   `json:"hex_id,omitempty"      gorm:"type:varchar(64);uniqueIndex:ux_candidate_hex,priority:2,where:hex_id IS NOT NULL"`
}

// TableName returns the database table name for Candidate.
func (Candidate) TableName() string { return "prayer_candidates" }

// BeforeSave normalises the post label and refreshes PostLabelKey so every
// write path enforces the same identity rule.
func (c *Candidate) BeforeSave(*gorm.DB) error {
	c.PostLabel = NormalizePostLabel(c.PostLabel)
	c.PostLabelKey = labelKey(c.PostLabel)
	if strings.TrimSpace(c.Party) == "" {
		c.Party = DefaultParty
	}
	return nil
}

// Key returns the candidate's natural key.
func (c Candidate) Key() NaturalKey {
	return NewNaturalKey(c.PersonName, c.PostLabel, c.CountryCode)
}

// NaturalKey is the real-world identity of a candidate. PostLabel is "" when
// the candidate has no label.
type NaturalKey struct {
	PersonName  string
	PostLabel   string
	CountryCode string
}

// NewNaturalKey builds a key, folding nil and blank labels into "".
func NewNaturalKey(personName string, postLabel *string, countryCode string) NaturalKey {
	return NaturalKey{
		PersonName:  personName,
		PostLabel:   labelKey(NormalizePostLabel(postLabel)),
		CountryCode: countryCode,
	}
}

// NormalizePostLabel trims the label and maps blank input to nil.
func NormalizePostLabel(label *string) *string {
	if label == nil {
		return nil
	}
	v := strings.TrimSpace(*label)
	if v == "" {
		return nil
	}
	return &v
}

func labelKey(label *string) string {
	if label == nil {
		return ""
	}
	return *label
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
