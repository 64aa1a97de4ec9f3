// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Candidate
// model, the single source of truth for queue state.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a transaction opened by the service layer. They follow the
// "thin repository" approach: no business logic, only persistence and query
// composition.
//
// Error semantics:
//   - When a candidate is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - A natural-key collision in UpsertQueued is not an error; it is reported
//     as inserted=false.
//   - Writing a hex_id already held in the same country returns ErrHexTaken
//     (UpsertQueued and Transition); the enclosing transaction stays usable.
//   - On other DB errors the raw gorm error is propagated and the caller is
//     expected to roll back its transaction.
//
// Functions:
//
//   - ListByStatus(ctx, db, status, country) -> []domain.Candidate, error
//     Queued rows by id ascending, prayed rows by status_timestamp descending.
//
//   - GetForTransition(ctx, db, id, required) -> *domain.Candidate, error
//     Read half of a check-then-act transition.
//
//   - UpsertQueued(ctx, db, c) -> inserted bool, error
//     Idempotent insert keyed on the natural key.
//
//   - Transition(ctx, db, id, from, to, at, hex) -> rowsAffected, error
//     Compare-and-swap on status. Zero rows means a lost race or a missing row.
//
//   - DeleteWhereStatus / PurgeAll -> rowsDeleted, error
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrHexTaken is returned when a write would give a map cell to a second
// candidate of the same country.
var ErrHexTaken = errors.New("hex cell already held in this country")

// ErrInvalidStatus is returned by Transition for statuses outside the
// lifecycle.
var ErrInvalidStatus = errors.New("invalid candidate status")

// identityConflict targets only the natural-key index, so a hex collision
// still surfaces as an error instead of being skipped.
var identityConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "person_name"},
		{Name: "post_label_key"},
		{Name: "country_code"},
	},
	DoNothing: true,
}

// HexUpdate describes what Transition does with the hex_id column.
type HexUpdate struct {
	Set   bool
	Value *string
}

// KeepHex leaves hex_id untouched.
var KeepHex = HexUpdate{}

// SetHex writes v (possibly nil) to hex_id.
func SetHex(v *string) HexUpdate { return HexUpdate{Set: true, Value: v} }

func scopeCountry(country string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if country == "" {
			return q
		}
		return q.Where("country_code = ?", country)
	}
}

// ListByStatus returns every candidate with status, optionally restricted to
// country ("" means all countries).
func ListByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) ([]domain.Candidate, error) {
	order := "id asc"
	if status == domain.StatusPrayed {
		order = "status_timestamp desc, id desc"
	}
	var out []domain.Candidate
	err := db.WithContext(ctx).
		Scopes(scopeCountry(country)).
		Where("status = ?", status).
		Order(order).
		Find(&out).Error
	return out, err
}

// CountByStatus returns the number of candidates with status in country
// ("" means all countries).
func CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status, country string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Scopes(scopeCountry(country)).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}

// FirstQueued returns the oldest queued candidate, or ErrNotFound when the
// queue is empty.
func FirstQueued(ctx context.Context, db *gorm.DB) (*domain.Candidate, error) {
	var c domain.Candidate
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusQueued).
		Order("id asc").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForTransition fetches candidate id only if its status equals required.
// It returns ErrNotFound otherwise.
func GetForTransition(ctx context.Context, db *gorm.DB, id uint, required domain.Status) (*domain.Candidate, error) {
	var c domain.Candidate
	err := db.WithContext(ctx).
		Where("id = ? AND status = ?", id, required).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindPrayedByKey looks up a prayed candidate by natural key.
func FindPrayedByKey(ctx context.Context, db *gorm.DB, key domain.NaturalKey) (*domain.Candidate, error) {
	var c domain.Candidate
	err := db.WithContext(ctx).
		Where("person_name = ? AND post_label_key = ? AND country_code = ? AND status = ?",
			key.PersonName, key.PostLabel, key.CountryCode, domain.StatusPrayed).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertQueued inserts c as a queued candidate. A row that already exists
// under the same natural key is left alone and inserted is false. A hex_id
// held by another candidate of the country yields ErrHexTaken. On success
// c.ID is populated.
func UpsertQueued(ctx context.Context, db *gorm.DB, c *domain.Candidate) (inserted bool, err error) {
	c.Status = domain.StatusQueued
	if c.InitialAddTimestamp.IsZero() {
		c.InitialAddTimestamp = time.Now().UTC()
	}
	if c.StatusTimestamp.IsZero() {
		c.StatusTimestamp = c.InitialAddTimestamp
	}

	// Wrap in a savepoint so a unique violation surfacing as an error does not
	// poison an enclosing Postgres transaction.
	var affected int64
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(identityConflict).Create(c)
		affected = res.RowsAffected
		return res.Error
	})
	switch {
	case err == nil:
		return affected > 0, nil
	case !isUniqueViolation(err):
		return false, err
	case c.HexID != nil:
		// The identity index is the conflict target, so the violated
		// index is the hex one.
		c.ID = 0
		return false, ErrHexTaken
	default:
		return false, nil
	}
}

// Transition moves candidate id from one status to another, stamping at and
// optionally rewriting hex_id. The update only applies while the row's status
// still equals from; rowsAffected is 0 when another writer got there first or
// the row does not exist. Setting a hex_id held by another candidate of the
// same country returns ErrHexTaken and leaves the row unchanged.
func Transition(ctx context.Context, db *gorm.DB, id uint, from, to domain.Status, at time.Time, hex HexUpdate) (int64, error) {
	if !from.Valid() || !to.Valid() {
		return 0, fmt.Errorf("%w: %q -> %q", ErrInvalidStatus, from, to)
	}
	updates := map[string]any{
		"status":           to,
		"status_timestamp": at,
	}
	if hex.Set {
		updates["hex_id"] = hex.Value
	}
	update := func(tx *gorm.DB) (int64, error) {
		res := tx.Model(&domain.Candidate{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		return res.RowsAffected, res.Error
	}
	if !hex.Set || hex.Value == nil {
		return update(db.WithContext(ctx))
	}

	var n int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = update(tx)
		return err
	})
	if isUniqueViolation(err) {
		return 0, ErrHexTaken
	}
	return n, err
}

// DeleteWhereStatus removes every candidate with status.
func DeleteWhereStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	res := db.WithContext(ctx).
		Where("status = ?", status).
		Delete(&domain.Candidate{})
	return res.RowsAffected, res.Error
}

// PurgeAll removes every candidate regardless of status.
func PurgeAll(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.Candidate{})
	return res.RowsAffected, res.Error
}

// ListIdentities returns the natural keys of every candidate with status.
func ListIdentities(ctx context.Context, db *gorm.DB, status domain.Status) ([]domain.NaturalKey, error) {
	var rows []struct {
		PersonName   string
		PostLabelKey string
		CountryCode  string
	}
	err := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Select("person_name", "post_label_key", "country_code").
		Where("status = ?", status).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.NaturalKey, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.NaturalKey{
			PersonName:  r.PersonName,
			PostLabel:   r.PostLabelKey,
			CountryCode: r.CountryCode,
		})
	}
	return out, nil
}

// UsedHexIDs returns the hex ids held by queued or prayed candidates of
// country, ignoring candidate exclude (0 excludes nobody).
func UsedHexIDs(ctx context.Context, db *gorm.DB, country string, exclude uint) ([]string, error) {
	q := db.WithContext(ctx).
		Model(&domain.Candidate{}).
		Where("country_code = ? AND hex_id IS NOT NULL", country).
		Where("status IN ?", []domain.Status{domain.StatusQueued, domain.StatusPrayed})
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	var ids []string
	err := q.Pluck("hex_id", &ids).Error
	return ids, err
}

// isUniqueViolation recognises unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value violates unique constraint")
}
