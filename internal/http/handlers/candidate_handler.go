// Candidate HTTP handlers.
//
// This file exposes the read side of the queue:
//   - GET /countries                   (configured countries)
//   - GET /candidates/queued           (queue order, optional ?country=)
//   - GET /candidates/queued/count     (queue length)
//   - GET /candidates/next             (head of the queue)
//   - GET /candidates/prayed           (most recent first, weak ETag)
//   - GET /candidates/prayed/count     (prayed total)
//   - GET /candidates/prayed/search    (name lookup for the put-back form)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/domain"
	"github.com/tbourn/go-prayer-queue/internal/search"
	"github.com/tbourn/go-prayer-queue/internal/services"
	"github.com/tbourn/go-prayer-queue/internal/utils"
)

//
// DTOs
//

// CandidateListResponse wraps a list of candidates.
type CandidateListResponse struct {
	Country    string             `json:"country,omitempty" example:"israel"`
	Count      int                `json:"count" example:"2"`
	Candidates []domain.Candidate `json:"candidates"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Country string `json:"country,omitempty" example:"iran"`
	Count   int64  `json:"count" example:"17"`
}

// SearchResponse carries name lookup matches, best first.
type SearchResponse struct {
	Query   string         `json:"query" example:"lapid"`
	Matches []search.Match `json:"matches"`
}

// CountriesResponse lists the configured countries.
type CountriesResponse struct {
	Countries domain.Countries `json:"countries"`
}

// failList answers a failed read: 400 for an unknown country filter, 500
// list_failed otherwise.
func failList(c *gin.Context, err error) {
	failErr(c, err, ErrCodeListFailed)
}

//
// Handlers
//

// ListCountries godoc
// @ID          listCountries
// @Summary     List configured countries
// @Tags        Candidates
// @Produce     json
// @Success     200  {object}  handlers.CountriesResponse
// @Router      /countries [get]
func (h *Handlers) ListCountries(c *gin.Context) {
	ok(c, http.StatusOK, CountriesResponse{Countries: h.countries})
}

// ListQueued godoc
// @ID          listQueued
// @Summary     List queued candidates
// @Description Returns queued candidates in queue order (oldest first).
// @Tags        Candidates
// @Produce     json
// @Param       country  query  string  false  "Country code filter"  example(israel)
// @Success     200  {object}  handlers.CandidateListResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/queued [get]
func (h *Handlers) ListQueued(c *gin.Context) {
	country := countryParam(c)
	items, err := h.prayer.ListQueued(c.Request.Context(), country)
	if err != nil {
		failList(c, err)
		return
	}
	ok(c, http.StatusOK, CandidateListResponse{Country: country, Count: len(items), Candidates: nonNil(items)})
}

// NextQueued godoc
// @ID          nextQueued
// @Summary     Head of the queue
// @Tags        Candidates
// @Produce     json
// @Success     200  {object}  domain.Candidate
// @Failure     404  {object}  handlers.ErrorResponse  "Queue is empty"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/next [get]
func (h *Handlers) NextQueued(c *gin.Context) {
	cand, err := h.prayer.NextQueued(c.Request.Context())
	if err != nil {
		failList(c, err)
		return
	}
	ok(c, http.StatusOK, cand)
}

// ListPrayed godoc
// @ID          listPrayed
// @Summary     List prayed candidates
// @Description Returns prayed candidates, most recent first. Supports a weak ETag.
// @Tags        Candidates
// @Produce     json
// @Param       country        query   string  false  "Country code filter"  example(israel)
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Success     200  {object}  handlers.CandidateListResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/prayed [get]
func (h *Handlers) ListPrayed(c *gin.Context) {
	ctx := c.Request.Context()
	country := countryParam(c)

	count, latest, err := h.prayer.PrayedStats(ctx, country)
	if err != nil {
		failList(c, err)
		return
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	scope := country
	if scope == "" {
		scope = "all"
	}
	etag := fmt.Sprintf(`W/"prayed:%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	items, err := h.cache.Get(ctx, country)
	if err != nil {
		failList(c, err)
		return
	}
	ok(c, http.StatusOK, CandidateListResponse{Country: country, Count: len(items), Candidates: nonNil(items)})
}

// CountQueued godoc
// @ID          countQueued
// @Summary     Count queued candidates
// @Tags        Candidates
// @Produce     json
// @Param       country  query  string  false  "Country code filter"  example(israel)
// @Success     200  {object}  handlers.CountResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/queued/count [get]
func (h *Handlers) CountQueued(c *gin.Context) {
	country := countryParam(c)
	n, err := h.prayer.CountQueued(c.Request.Context(), country)
	if err != nil {
		failList(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Country: country, Count: n})
}

// CountPrayed godoc
// @ID          countPrayed
// @Summary     Count prayed candidates
// @Tags        Candidates
// @Produce     json
// @Param       country  query  string  false  "Country code filter"  example(iran)
// @Success     200  {object}  handlers.CountResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown country"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/prayed/count [get]
func (h *Handlers) CountPrayed(c *gin.Context) {
	country := countryParam(c)
	n, err := h.prayer.CountPrayed(c.Request.Context(), country)
	if err != nil {
		failList(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Country: country, Count: n})
}

// SearchPrayed godoc
// @ID          searchPrayed
// @Summary     Look up prayed candidates by name
// @Description Ranks prayed candidates by token overlap with q (name and post label).
// @Tags        Candidates
// @Produce     json
// @Param       q        query  string  true   "Name fragment"        example(lapid)
// @Param       country  query  string  false  "Country code filter"  example(israel)
// @Param       limit    query  int     false  "Max matches"          minimum(1) maximum(20) default(5)
// @Success     200  {object}  handlers.SearchResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /candidates/prayed/search [get]
func (h *Handlers) SearchPrayed(c *gin.Context) {
	const (
		defaultLimit = 5
		maxLimit     = 20
	)
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	limit := utils.ClampInt(c.Query("limit"), defaultLimit, 1, maxLimit)

	country := countryParam(c)
	if country != "" {
		if _, known := h.countries.Get(country); !known {
			failList(c, fmt.Errorf("%w %q", services.ErrUnknownCountry, country))
			return
		}
	}
	items, err := h.cache.Get(c.Request.Context(), country)
	if err != nil {
		failList(c, err)
		return
	}
	matches := search.NewIndex(items, search.WithStopwords(search.Honorifics)).TopK(q, limit)
	if matches == nil {
		matches = []search.Match{}
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Matches: matches})
}

func nonNil(items []domain.Candidate) []domain.Candidate {
	if items == nil {
		return []domain.Candidate{}
	}
	return items
}
