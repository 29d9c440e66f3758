// Package parser turns a raw query string into the keywords shown to the
// provenance resolver and the index terms looked up by the executor.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
)

type Mode int

const (
	// ModeNormalized runs keywords through the indexing pipeline.
	ModeNormalized Mode = iota
	// ModeLiteral only lower-cases keywords and keeps alphanumeric words.
	ModeLiteral
)

type QueryPlan struct {
	RawQuery string
	// Keywords are the whitespace-delimited words of the query, verbatim.
	Keywords []string
	// Terms are the distinct index terms, in first-occurrence order.
	Terms []string
	Mode  Mode
}

// Parse splits query on whitespace and derives its terms. Terms are OR'd.
func Parse(query string, mode Mode) *QueryPlan {
	return FromKeywords(strings.Fields(query), mode).withRaw(query)
}

// FromKeywords builds a plan from an already split keyword sequence.
func FromKeywords(keywords []string, mode Mode) *QueryPlan {
	plan := &QueryPlan{
		RawQuery: strings.Join(keywords, " "),
		Keywords: make([]string, 0, len(keywords)),
		Terms:    make([]string, 0, len(keywords)),
		Mode:     mode,
	}
	seen := make(map[string]struct{})
	for _, kw := range keywords {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		plan.Keywords = append(plan.Keywords, kw)
		var terms []string
		if mode == ModeLiteral {
			terms = tokenizer.Literal(kw)
		} else {
			terms = tokenizer.Normalize(kw)
		}
		for _, term := range terms {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			plan.Terms = append(plan.Terms, term)
		}
	}
	return plan
}

func (p *QueryPlan) withRaw(raw string) *QueryPlan {
	p.RawQuery = raw
	return p
}

// ModeFor maps the search.normalizeQuery setting to a Mode.
func ModeFor(normalize bool) Mode {
	if normalize {
		return ModeNormalized
	}
	return ModeLiteral
}
