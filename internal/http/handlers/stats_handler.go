// Statistics HTTP handlers.
//
//   - GET /stats/summary              (queue size, prayed, remaining)
//   - GET /stats/{country}/parties    (prayed per party)
//   - GET /stats/{country}/timeline   (prayed events, oldest first; "overall" for all)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/services"
)

// PartyStatsResponse wraps the party chart data.
type PartyStatsResponse struct {
	Country string               `json:"country" example:"israel"`
	Parties []services.PartyStat `json:"parties"`
}

// TimelineResponse wraps the prayed timeline.
type TimelineResponse struct {
	Scope   string                   `json:"scope" example:"overall"`
	Entries []services.TimelineEntry `json:"entries"`
}

// failStats answers a failed statistics read. The country is a path
// segment here, so an unknown one is a missing resource.
func failStats(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUnknownCountry) {
		fail(c, http.StatusNotFound, ErrCodeUnknownCountry, err.Error())
		return
	}
	failErr(c, err, ErrCodeStatsFailed)
}

// Summary godoc
// @ID          statsSummary
// @Summary     Overall progress
// @Tags        Stats
// @Produce     json
// @Success     200  {object}  services.Summary
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats/summary [get]
func (h *Handlers) Summary(c *gin.Context) {
	sum, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		failStats(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// PartyStatistics godoc
// @ID          statsParties
// @Summary     Prayed candidates per party
// @Tags        Stats
// @Produce     json
// @Param       country  path  string  true  "Country code"  example(israel)
// @Success     200  {object}  handlers.PartyStatsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats/{country}/parties [get]
func (h *Handlers) PartyStatistics(c *gin.Context) {
	country := strings.ToLower(c.Param("country"))
	parties, err := h.stats.PartyStatistics(c.Request.Context(), country)
	if err != nil {
		failStats(c, err)
		return
	}
	if parties == nil {
		parties = []services.PartyStat{}
	}
	ok(c, http.StatusOK, PartyStatsResponse{Country: country, Parties: parties})
}

// Timeline godoc
// @ID          statsTimeline
// @Summary     Prayed timeline
// @Tags        Stats
// @Produce     json
// @Param       country  path  string  true  "Country code or overall"  example(overall)
// @Success     200  {object}  handlers.TimelineResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats/{country}/timeline [get]
func (h *Handlers) Timeline(c *gin.Context) {
	scope := strings.ToLower(c.Param("country"))
	entries, err := h.stats.Timeline(c.Request.Context(), scope)
	if err != nil {
		failStats(c, err)
		return
	}
	if entries == nil {
		entries = []services.TimelineEntry{}
	}
	ok(c, http.StatusOK, TimelineResponse{Scope: scope, Entries: entries})
}
