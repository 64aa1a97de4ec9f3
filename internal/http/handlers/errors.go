package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-prayer-queue/internal/services"
)

// Error codes carried in ErrorResponse.Code. Clients branch on these, so
// they never change once published.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"

	ErrCodeUnknownCountry   = "unknown_country"
	ErrCodeQueueEmpty       = "queue_empty"
	ErrCodeListFailed       = "list_failed"
	ErrCodeTransitionFailed = "transition_failed"
	ErrCodeStatsFailed      = "stats_failed"
	ErrCodeReseedFailed     = "reseed_failed"
	ErrCodePurgeFailed      = "purge_failed"
)

// errorRule maps a service sentinel to its response.
type errorRule struct {
	target error
	status int
	code   string
}

// Ordered: a purge error that wraps a reseed error reports as the purge.
var errorRules = []errorRule{
	{services.ErrInvalidCandidateID, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrEmptyIdentity, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrUnknownCountry, http.StatusBadRequest, ErrCodeUnknownCountry},
	{services.ErrQueueEmpty, http.StatusNotFound, ErrCodeQueueEmpty},
	{services.ErrPurgeFailed, http.StatusInternalServerError, ErrCodePurgeFailed},
	{services.ErrReseedFailed, http.StatusInternalServerError, ErrCodeReseedFailed},
}

// classify returns the status and code for err; unrecognised errors are a
// 500 with the fallback code.
func classify(err error, fallback string) (int, string) {
	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			return r.status, r.code
		}
	}
	return http.StatusInternalServerError, fallback
}
