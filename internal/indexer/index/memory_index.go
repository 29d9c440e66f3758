// Package index holds the in-memory form of a generation while it is being
// built: line units in insertion order and per-term postings keyed by unit id.
package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/tokenizer"
)

// MemoryIndex accumulates line units and their postings during a build.
// Unit ids are dense and assigned in insertion order. It is safe for
// concurrent use.
type MemoryIndex struct {
	mu          sync.RWMutex
	units       []LineUnit
	keys        map[UnitKey]struct{}
	docs        map[string]struct{}
	index       map[string]map[uint32]*Posting
	totalTokens int
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		keys:  make(map[UnitKey]struct{}),
		docs:  make(map[string]struct{}),
		index: make(map[string]map[uint32]*Posting),
	}
}

// AddLine normalizes raw and adds it as a unit. When keepRaw is false only
// the normalized terms are retained.
func (m *MemoryIndex) AddLine(docID string, lineOffset int, raw string, keepRaw bool) (uint32, error) {
	tokens := tokenizer.Tokenize(raw)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	unit := LineUnit{
		DocID:      docID,
		LineOffset: lineOffset,
		Normalized: strings.Join(terms, " "),
	}
	if keepRaw {
		unit.Raw = raw
	}
	return m.AddUnit(unit)
}

// AddUnit appends a unit and indexes its normalized terms. A second unit with
// the same (DocID, LineOffset) is rejected rather than overwriting the first.
func (m *MemoryIndex) AddUnit(unit LineUnit) (uint32, error) {
	terms := strings.Fields(unit.Normalized)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := unit.Key()
	if _, dup := m.keys[key]; dup {
		return 0, fmt.Errorf("duplicate line unit %s:%d", unit.DocID, unit.LineOffset)
	}
	id := uint32(len(m.units))
	m.units = append(m.units, unit)
	m.keys[key] = struct{}{}
	m.docs[unit.DocID] = struct{}{}
	m.totalTokens += len(terms)

	for pos, term := range terms {
		byUnit, ok := m.index[term]
		if !ok {
			byUnit = make(map[uint32]*Posting)
			m.index[term] = byUnit
		}
		p, ok := byUnit[id]
		if !ok {
			p = &Posting{UnitID: id, Positions: make([]int, 0, 2)}
			byUnit[id] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, pos)
	}
	return id, nil
}

// Search returns the postings of an already normalized term, or nil.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedPostings(m.index[term])
}

// Snapshot returns every term with its postings, terms in ascending order.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, byUnit := range m.index {
		entries = append(entries, TermEntry{Term: term, Postings: sortedPostings(byUnit)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Units returns the units indexed by their id.
func (m *MemoryIndex) Units() []LineUnit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]LineUnit(nil), m.units...)
}

// Stats summarizes the units added so far.
func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Units:     len(m.units),
		Documents: len(m.docs),
		Terms:     len(m.index),
		Tokens:    m.totalTokens,
	}
	if s.Units > 0 {
		s.AvgUnitLength = float64(m.totalTokens) / float64(s.Units)
	}
	return s
}

func sortedPostings(byUnit map[uint32]*Posting) PostingList {
	if len(byUnit) == 0 {
		return nil
	}
	out := make(PostingList, 0, len(byUnit))
	for _, p := range byUnit {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UnitID < out[j].UnitID
	})
	return out
}
