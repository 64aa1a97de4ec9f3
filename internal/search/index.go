// Package search is the in-memory name lookup behind the put-back form: a
// user types part of a name and picks the prayed candidate to return to the
// queue.
//
// An Index is immutable once built and safe for concurrent use. Tokens are
// Unicode words, case-folded, so Hebrew and Persian names work as typed.
// A query token scores 1 when it equals a name token and 0.5 when it is a
// prefix of one (at least two letters), and a candidate's score is the
// weighted hits over the union of both token sets. Full matches therefore
// score 1 and ties break by name, then id.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/tbourn/go-prayer-queue/internal/domain"
)

const (
	exactWeight  = 1.0
	prefixWeight = 0.5
	minPrefix    = 2
	defaultK     = 5
)

// Honorifics are titles that precede names on the rosters and carry no
// identifying value.
var Honorifics = []string{"dr", "prof", "mk", "rabbi", "ayatollah", "hojatoleslam"}

// Match is a candidate with its score in (0, 1].
type Match struct {
	Candidate domain.Candidate `json:"candidate"`
	Score     float64          `json:"score"`
}

// Option configures NewIndex.
type Option func(*options)

type options struct {
	stop      map[string]struct{}
	withLabel bool
}

// WithStopwords drops words from names and queries alike.
func WithStopwords(words []string) Option {
	return func(o *options) {
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w == "" {
				continue
			}
			if o.stop == nil {
				o.stop = make(map[string]struct{}, len(words))
			}
			o.stop[w] = struct{}{}
		}
	}
}

// WithoutPostLabel indexes person names only.
func WithoutPostLabel() Option {
	return func(o *options) { o.withLabel = false }
}

type entry struct {
	cand   domain.Candidate
	tokens []string // sorted, unique
}

// Index answers name lookups over a fixed set of candidates.
type Index struct {
	opts    options
	entries []entry
}

// NewIndex indexes cands by person name and, unless disabled, post label.
// Candidates without any token are left out.
func NewIndex(cands []domain.Candidate, opts ...Option) *Index {
	o := options{withLabel: true}
	for _, fn := range opts {
		fn(&o)
	}
	idx := &Index{opts: o, entries: make([]entry, 0, len(cands))}
	for _, c := range cands {
		text := c.PersonName
		if o.withLabel && c.PostLabel != nil {
			text += " " + *c.PostLabel
		}
		if toks := tokenize(text, o.stop); len(toks) > 0 {
			idx.entries = append(idx.entries, entry{cand: c, tokens: toks})
		}
	}
	return idx
}

// Len is the number of indexed candidates.
func (x *Index) Len() int { return len(x.entries) }

// TopK returns up to k matches, best first; k <= 0 means 5. A query with no
// usable token, or one that matches nobody, returns nil.
func (x *Index) TopK(query string, k int) []Match {
	if k <= 0 {
		k = defaultK
	}
	q := tokenize(query, x.opts.stop)
	if len(q) == 0 || len(x.entries) == 0 {
		return nil
	}

	var out []Match
	for _, e := range x.entries {
		if s := score(q, e.tokens); s > 0 {
			out = append(out, Match{Candidate: e.cand, Score: s})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		ma, mb := out[a], out[b]
		if ma.Score != mb.Score {
			return ma.Score > mb.Score
		}
		if ma.Candidate.PersonName != mb.Candidate.PersonName {
			return ma.Candidate.PersonName < mb.Candidate.PersonName
		}
		return ma.Candidate.ID < mb.Candidate.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func score(query, name []string) float64 {
	var weight float64
	hits := 0
	for _, q := range query {
		i := sort.SearchStrings(name, q)
		switch {
		case i < len(name) && name[i] == q:
			weight += exactWeight
			hits++
		case i < len(name) && utf8.RuneCountInString(q) >= minPrefix && strings.HasPrefix(name[i], q):
			weight += prefixWeight
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return weight / float64(len(query)+len(name)-hits)
}

var wordRE = regexp.MustCompile(`[\p{L}\p{M}]+\p{N}*|\p{N}+`)

// tokenize returns the sorted, unique folded words of s minus stop words.
func tokenize(s string, stop map[string]struct{}) []string {
	words := wordRE.FindAllString(fold(s), -1)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
