// Package services defines the business logic for the prayer queue: seeding
// the queue from rosters, moving candidates between queued and prayed, and
// the read models behind the statistics pages.
//
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers. Translation
// into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCountry is returned when a country filter names a country that
	// is not configured.
	ErrUnknownCountry = errors.New("unknown country")

	// ErrInvalidCandidateID is returned for a zero candidate id.
	ErrInvalidCandidateID = errors.New("invalid candidate id")

	// ErrEmptyIdentity is returned when a natural key has no person name or
	// country.
	ErrEmptyIdentity = errors.New("person_name and country_code are required")

	// ErrQueueEmpty is returned by NextQueued when nobody is queued.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrReseedFailed wraps any repository failure that aborted a reseed.
	// The transaction has been rolled back; the call may be retried.
	ErrReseedFailed = errors.New("reseed failed")

	// ErrPurgeFailed wraps a repository failure during a full purge.
	ErrPurgeFailed = errors.New("purge failed")
)

// unknownCountry wraps ErrUnknownCountry with the offending code.
func unknownCountry(code string) error {
	return fmt.Errorf("%w %q", ErrUnknownCountry, code)
}
