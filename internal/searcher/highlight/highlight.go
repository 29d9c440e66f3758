// Package highlight builds the marked-up excerpt of a matching line and
// reduces such excerpts back to plain text.
package highlight

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
)

type Options struct {
	// MaxChars bounds the excerpt length in bytes of source text.
	MaxChars int
	// Surround is the context kept before the first and after the last match.
	Surround int
	// Literal matches words verbatim instead of by stem.
	Literal bool
}

// Excerpt returns the part of text around the tokens matching terms, HTML
// escaped, with every match wrapped as <b class="match termN"> where N is
// the index of the matched term. Text without a match is returned escaped
// and truncated to MaxChars.
func Excerpt(text string, terms []string, opts Options) string {
	termIndex := make(map[string]int, len(terms))
	for i, t := range terms {
		if _, ok := termIndex[t]; !ok {
			termIndex[t] = i
		}
	}
	var tokens []tokenizer.Token
	if opts.Literal {
		tokens = tokenizer.Words(text)
	} else {
		tokens = tokenizer.Tokenize(text)
	}

	type match struct {
		start, end, term int
	}
	var matches []match
	for _, tok := range tokens {
		if i, ok := termIndex[tok.Term]; ok {
			matches = append(matches, match{tok.Start, tok.End, i})
		}
	}
	if len(matches) == 0 {
		return html.EscapeString(clip(text, 0, opts.MaxChars))
	}

	start := matches[0].start - opts.Surround
	if start < 0 {
		start = 0
	}
	start = runeStart(text, start)
	limit := len(text)
	if opts.MaxChars > 0 && start+opts.MaxChars < limit {
		limit = start + opts.MaxChars
	}
	last := 0
	for i, m := range matches {
		if m.end > limit && i > 0 {
			break
		}
		last = i
	}
	end := matches[last].end + opts.Surround
	if end > limit {
		end = limit
	}
	if end < matches[last].end {
		end = matches[last].end
	}
	end = runeEnd(text, end)

	var b strings.Builder
	pos := start
	for _, m := range matches[:last+1] {
		b.WriteString(html.EscapeString(text[pos:m.start]))
		fmt.Fprintf(&b, `<b class="match term%d">%s</b>`, m.term, html.EscapeString(text[m.start:m.end]))
		pos = m.end
	}
	b.WriteString(html.EscapeString(text[pos:end]))
	return b.String()
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Sanitize strips markup from an excerpt, unescapes entities and collapses
// whitespace runs to single spaces.
func Sanitize(fragment string) string {
	plain := tagPattern.ReplaceAllString(fragment, "")
	plain = html.UnescapeString(plain)
	return strings.Join(strings.Fields(plain), " ")
}

// clip returns text[start:start+n] widened to rune boundaries; n <= 0 means
// no limit.
func clip(text string, start, n int) string {
	if n <= 0 || start+n >= len(text) {
		return text[start:]
	}
	return text[start:runeEnd(text, start+n)]
}

func runeStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func runeEnd(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}
