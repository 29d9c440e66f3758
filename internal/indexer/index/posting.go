package index

import "strings"

// LineUnit is one physical line of a document, the atomic indexed entity.
// (DocID, LineOffset) identifies it.
type LineUnit struct {
	DocID      string `json:"d"`
	LineOffset int    `json:"o"`
	Normalized string `json:"n"`
	Raw        string `json:"r,omitempty"`
}

// Length is the number of terms in the unit, used for length normalisation.
func (u LineUnit) Length() int {
	return len(strings.Fields(u.Normalized))
}

// Text returns the raw line when it was stored, else the normalized terms.
func (u LineUnit) Text() string {
	if u.Raw != "" {
		return u.Raw
	}
	return u.Normalized
}

// UnitKey identifies a line independently of its unit id.
type UnitKey struct {
	DocID      string
	LineOffset int
}

func (u LineUnit) Key() UnitKey {
	return UnitKey{DocID: u.DocID, LineOffset: u.LineOffset}
}

// Posting records the occurrences of one term in one line unit.
type Posting struct {
	UnitID    uint32 `json:"u"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p"`
}

// PostingList is sorted by UnitID.
type PostingList []Posting

// TermEntry pairs a term with its postings for segment writing.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// Stats describes one committed generation.
type Stats struct {
	Units         int     `json:"units"`
	Documents     int     `json:"documents"`
	Terms         int     `json:"terms"`
	Tokens        int     `json:"tokens"`
	AvgUnitLength float64 `json:"avg_unit_length"`
}
