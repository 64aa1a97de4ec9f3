package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-prayer-queue/internal/http/middleware"
)

// ErrorResponse is the error body of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client error to server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code
	Code string `json:"code" example:"unknown_country"`
	// Human-readable message
	Message string `json:"message" example:"unknown country \"mars\""`
}

// fail aborts with an ErrorResponse. Server errors are logged on the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's fallback handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr answers with the response classify picks for err. Client errors
// carry the service message; server errors are logged in full and answered
// with a message derived from the code, so storage details stay in the logs.
func failErr(c *gin.Context, err error, fallback string) {
	status, code := classify(err, fallback)
	if status < http.StatusInternalServerError {
		fail(c, status, code, err.Error())
		return
	}
	middleware.LoggerFrom(c).Error().Err(err).Int("status", status).Str("code", code).Msg("api error")
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   strings.ReplaceAll(code, "_", " "),
	})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
