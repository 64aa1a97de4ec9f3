// Administrative HTTP handlers, mounted behind middleware.AdminAuth.
//
//   - POST /admin/reseed   (rebuild the queue; Idempotency-Key replays a recent run)
//   - POST /admin/purge    (delete every candidate, then reseed)
//
// Failures leave the data as it was and answer 500; the call can be retried.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/http/middleware"
	"github.com/tbourn/go-prayer-queue/internal/services"
)

// PurgeResponse reports a purge followed by a reseed.
type PurgeResponse struct {
	Deleted int64                 `json:"deleted" example:"410"`
	Reseed  services.ReseedResult `json:"reseed"`
}

// Reseed godoc
// @ID          adminReseed
// @Summary     Rebuild the queue from the rosters
// @Description Deletes every queued candidate and repopulates the queue. Prayed candidates are kept
// @Description and never re-queued. A repeated Idempotency-Key replays the recorded counts.
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Token    header  string  false  "Admin token (required when configured)"
// @Param       Idempotency-Key  header  string  false  "Replay key"  example(reseed-2024-05-01)
// @Success     200  {object}  services.ReseedOutcome
// @Failure     400  {object}  handlers.ErrorResponse  "Bad idempotency key"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Reseed failed"
// @Router      /admin/reseed [post]
func (h *Handlers) Reseed(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	out, err := h.queue.ReseedOnce(c.Request.Context(), key)
	if err != nil {
		failErr(c, err, ErrCodeReseedFailed)
		return
	}
	if out.Replayed {
		middleware.MarkReplayed(c)
	} else {
		h.afterRebuild(c)
	}
	ok(c, http.StatusOK, out)
}

// Purge godoc
// @ID          adminPurge
// @Summary     Purge every candidate and reseed
// @Description Deletes all candidates, prayed ones included, then rebuilds the queue.
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Token  header  string  false  "Admin token (required when configured)"
// @Success     200  {object}  handlers.PurgeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Purge or reseed failed"
// @Router      /admin/purge [post]
func (h *Handlers) Purge(c *gin.Context) {
	deleted, res, err := h.queue.PurgeAndReseed(c.Request.Context())
	if err != nil {
		// The purge may have committed even when the reseed did not.
		h.cache.InvalidateAll()
		failErr(c, err, ErrCodeReseedFailed)
		return
	}
	middleware.LoggerFrom(c).Warn().Int64("deleted", deleted).Int("inserted", res.Inserted).Msg("purged and reseeded")
	h.afterRebuild(c)
	ok(c, http.StatusOK, PurgeResponse{Deleted: deleted, Reseed: res})
}
