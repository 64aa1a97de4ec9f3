package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced by "[REDACTED]" in addition to Authorization,
	// Cookie, Set-Cookie and X-Admin-Token. Case-insensitive.
	MaskHeaders []string
	// QuietPaths log successful requests at debug level (probes, scrapes).
	QuietPaths []string
}

// scrubber replaces identifiers that should not reach the logs. UUIDs go
// first so the loose phone pattern never eats their digit groups.
type scrubber struct {
	patterns []scrubPattern
}

type scrubPattern struct {
	re   *regexp.Regexp
	repl string
}

func newScrubber() scrubber {
	return scrubber{patterns: []scrubPattern{
		{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
		{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
		{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
	}}
}

func (s scrubber) scrub(v string) string {
	for _, p := range s.patterns {
		if v == "" {
			break
		}
		v = p.re.ReplaceAllString(v, p.repl)
	}
	return v
}

func headerMask(extra []string) map[string]struct{} {
	m := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
		"x-admin-token": {},
	}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return m
}

// RedactingLogger attaches a request-scoped logger (request_id, method,
// route, remote_ip and the queue scope) for LoggerFrom and writes one
// "http_request" line per request. Bodies are never logged; the query string
// and header values pass through the scrubber and masked headers are blanked.
//
// Levels: error on 5xx or gin errors, warn on 4xx, debug for successful
// requests to QuietPaths, info otherwise. Replayed idempotent calls are
// flagged with replayed=true.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	sc := newScrubber()
	masked := headerMask(opts.MaskHeaders)
	quiet := make(map[string]struct{}, len(opts.QuietPaths))
	for _, p := range opts.QuietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		zc := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("remote_ip", c.ClientIP())
		l := scopeFields(c, zc).Logger()
		c.Set(loggerKey, &l)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = sc.scrub(strings.Join(vv, ", "))
		}
		query := sc.scrub(truncate(c.Request.URL.RawQuery, maxQueryLogLength))

		c.Next()

		status := c.Writer.Status()
		_, isQuiet := quiet[c.Request.URL.Path]

		ev := l.WithLevel(levelFor(status, len(c.Errors), isQuiet)).
			Str("query", query).
			Str("principal", Principal(c)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers)
		if c.Writer.Header().Get(HeaderIdempotencyReplayed) == "true" {
			ev = ev.Bool("replayed", true)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("http_request")
	}
}
