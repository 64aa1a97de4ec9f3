// Transition HTTP handlers.
//
// This file exposes the two status transitions:
//   - POST /candidates/{id}/pray       (queued → prayed)
//   - POST /candidates/{id}/put-back   (prayed → queued, ?reassign_hex=true)
//   - POST /candidates/put-back        (prayed → queued by natural key)
//
// A transition that finds the candidate already moved (double click, lost
// race, unknown id) answers 200 with changed=false, so retries are safe.
// After every change the prayed cache and the country's map are refreshed.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/http/middleware"
)

//
// DTOs
//

// TransitionResponse reports the outcome of a transition.
type TransitionResponse struct {
	// Changed is false when the call was a no-op.
	Changed bool `json:"changed" example:"true"`
	// Candidate is the pre-transition snapshot for pray and the new state for
	// put-back; omitted on no-ops.
	Candidate *domain.Candidate `json:"candidate,omitempty"`
}

// PutBackRequest identifies a prayed candidate by natural key.
type PutBackRequest struct {
	PersonName  string  `json:"person_name" binding:"required" example:"Yair Lapid"`
	PostLabel   *string `json:"post_label" example:"Tel Aviv"`
	CountryCode string  `json:"country_code" binding:"required" example:"israel"`
	ReassignHex bool    `json:"reassign_hex" example:"false"`
}

//
// Helpers
//

func parseCandidateID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "candidate id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func failTransition(c *gin.Context, err error) {
	failErr(c, err, ErrCodeTransitionFailed)
}

//
// Handlers
//

// MarkPrayed godoc
// @ID          markPrayed
// @Summary     Mark a candidate as prayed
// @Description Moves a queued candidate to prayed. Repeating the call is a no-op (changed=false).
// @Tags        Transitions
// @Produce     json
// @Param       id   path  int  true  "Candidate ID"  minimum(1)
// @Success     200  {object}  handlers.TransitionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/{id}/pray [post]
func (h *Handlers) MarkPrayed(c *gin.Context) {
	id, valid := parseCandidateID(c)
	if !valid {
		return
	}
	snap, changed, err := h.prayer.MarkPrayed(c.Request.Context(), id)
	if err != nil {
		failTransition(c, err)
		return
	}
	if changed {
		middleware.LoggerFrom(c).Info().Uint("candidate_id", id).Str("country", snap.CountryCode).Msg("prayed")
		h.afterMutation(c, snap.CountryCode)
	}
	ok(c, http.StatusOK, TransitionResponse{Changed: changed, Candidate: snap})
}

// PutBack godoc
// @ID          putBack
// @Summary     Return a prayed candidate to the queue
// @Description Moves a prayed candidate back to queued. Random-allocation countries keep
// @Description their map cell unless reassign_hex is set or the cell is no longer free.
// @Tags        Transitions
// @Produce     json
// @Param       id            path   int   true   "Candidate ID"  minimum(1)
// @Param       reassign_hex  query  bool  false  "Draw a new map cell"
// @Success     200  {object}  handlers.TransitionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/{id}/put-back [post]
func (h *Handlers) PutBack(c *gin.Context) {
	id, valid := parseCandidateID(c)
	if !valid {
		return
	}
	reassign, _ := strconv.ParseBool(c.DefaultQuery("reassign_hex", "false"))
	after, changed, err := h.prayer.PutBack(c.Request.Context(), id, reassign)
	if err != nil {
		failTransition(c, err)
		return
	}
	if changed {
		h.afterMutation(c, after.CountryCode)
	}
	ok(c, http.StatusOK, TransitionResponse{Changed: changed, Candidate: after})
}

// PutBackByKey godoc
// @ID          putBackByKey
// @Summary     Return a prayed candidate to the queue by identity
// @Tags        Transitions
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.PutBackRequest  true  "Natural key of the candidate"
// @Success     200  {object}  handlers.TransitionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/put-back [post]
func (h *Handlers) PutBackByKey(c *gin.Context) {
	var req PutBackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "person_name and country_code required")
		return
	}
	key := domain.NewNaturalKey(req.PersonName, req.PostLabel, req.CountryCode)
	after, changed, err := h.prayer.PutBackByKey(c.Request.Context(), key, req.ReassignHex)
	if err != nil {
		failTransition(c, err)
		return
	}
	if changed {
		h.afterMutation(c, after.CountryCode)
	}
	ok(c, http.StatusOK, TransitionResponse{Changed: changed, Candidate: after})
}
