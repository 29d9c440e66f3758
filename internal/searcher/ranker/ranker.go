// Package ranker scores line units with BM25 and folds them into one
// ranked entry per document.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// TermPostings are the postings of one query term.
type TermPostings struct {
	Term     string
	Postings index.PostingList
}

type RankParams struct {
	TotalUnits    int
	AvgUnitLength float64
}

type UnitInfo struct {
	DocID  string
	Length int
}

// ScoredUnit is a line unit matching at least one term. Terms lists the
// matched query terms in query order.
type ScoredUnit struct {
	UnitID uint32   `json:"unit_id"`
	DocID  string   `json:"doc_id"`
	Score  float64  `json:"score"`
	Terms  []string `json:"terms"`
}

// Rank scores every unit that appears in any posting list (OR semantics).
// getUnitInfo is called once per matching unit. Scores are rounded to four
// decimals so equal relevance compares equal.
func Rank(perTerm []TermPostings, params RankParams, getUnitInfo func(id uint32) (UnitInfo, error)) ([]ScoredUnit, error) {
	type acc struct {
		unit   ScoredUnit
		length int
	}
	byUnit := make(map[uint32]*acc)
	var order []uint32
	for _, tp := range perTerm {
		if len(tp.Postings) == 0 {
			continue
		}
		idf := computeIDF(int64(params.TotalUnits), int64(len(tp.Postings)))
		for _, posting := range tp.Postings {
			a, ok := byUnit[posting.UnitID]
			if !ok {
				info, err := getUnitInfo(posting.UnitID)
				if err != nil {
					return nil, err
				}
				a = &acc{unit: ScoredUnit{UnitID: posting.UnitID, DocID: info.DocID}, length: info.Length}
				byUnit[posting.UnitID] = a
				order = append(order, posting.UnitID)
			}
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(a.length),
				params.AvgUnitLength,
			)
			a.unit.Score += idf * tfNorm
			a.unit.Terms = append(a.unit.Terms, tp.Term)
		}
	}
	result := make([]ScoredUnit, 0, len(order))
	for _, id := range order {
		u := byUnit[id].unit
		u.Score = math.Round(u.Score*10000) / 10000
		result = append(result, u)
	}
	return result, nil
}

// GroupByDocument keeps the best unit of every document, ordered by score
// descending then doc id ascending, and cuts the result to limit (0 keeps
// everything). Within a document, ties go to the earlier unit.
func GroupByDocument(units []ScoredUnit, limit int) []ScoredUnit {
	best := make(map[string]ScoredUnit)
	for _, u := range units {
		cur, ok := best[u.DocID]
		if !ok || u.Score > cur.Score || (u.Score == cur.Score && u.UnitID < cur.UnitID) {
			best[u.DocID] = u
		}
	}
	result := make([]ScoredUnit, 0, len(best))
	for _, u := range best {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalUnits int64, docFreq int64) float64 {
	numerator := float64(totalUnits) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, unitLength float64, avgUnitLength float64) float64 {
	if avgUnitLength == 0 {
		return 0
	}
	lengthRatio := unitLength / avgUnitLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
