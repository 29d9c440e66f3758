// Package tokenizer turns raw line text into the terms stored in the index.
// Text is split into letter/digit runs, lower-cased, filtered against the
// English stop-word list and stemmed with the Snowball English stemmer.
package tokenizer

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// Token is a surviving term together with its ordinal among surviving terms
// and the byte span of the source word it came from.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Tokenize returns the stemmed tokens of text in input order. Duplicates are
// kept; term frequency depends on them.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6+1)
	eachWord(text, func(start, end int) {
		term, ok := normalizeWord(strings.ToLower(text[start:end]))
		if !ok {
			return
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: len(tokens),
			Start:    start,
			End:      end,
		})
	})
	return tokens
}

// Normalize returns only the terms of Tokenize.
func Normalize(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Literal splits text the same way but only lower-cases the words: no stop
// words are removed and nothing is stemmed.
func Literal(text string) []string {
	words := Words(text)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Term
	}
	return out
}

// Words is the literal counterpart of Tokenize: every alphanumeric word,
// lower-cased, with its byte span.
func Words(text string) []Token {
	var words []Token
	eachWord(text, func(start, end int) {
		w := strings.ToLower(text[start:end])
		if isAlnum(w) {
			words = append(words, Token{Term: w, Position: len(words), Start: start, End: end})
		}
	})
	return words
}

func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// eachWord calls fn with the byte span of every maximal letter/digit run.
func eachWord(text string, fn func(start, end int)) {
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			fn(start, i)
			start = -1
		}
	}
	if start >= 0 {
		fn(start, len(text))
	}
}

const maxStemRounds = 4

func normalizeWord(word string) (string, bool) {
	// Lower-casing can introduce combining marks (e.g. U+0130).
	if !isAlnum(word) {
		return "", false
	}
	if IsStopWord(word) {
		return "", false
	}
	stem := stemFixpoint(word)
	if stem == "" || IsStopWord(stem) {
		return "", false
	}
	return stem, true
}

// stemFixpoint re-stems until the output is stable, so a stem fed back
// through Normalize maps to itself. Snowball settles within two rounds.
func stemFixpoint(word string) string {
	stem := snowballeng.Stem(word, false)
	for range maxStemRounds {
		next := snowballeng.Stem(stem, false)
		if next == stem {
			break
		}
		stem = next
	}
	return stem
}

func isAlnum(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
