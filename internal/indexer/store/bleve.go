package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
)

const (
	termsAnalyzerName = "linesearch_terms"
	statsKey          = "linesearch.stats"
	bleveBatchSize    = 1000

	fieldDocID      = "doc_id"
	fieldLineOffset = "line_offset"
	fieldContent    = "content"
	fieldRaw        = "raw"
)

var storedFields = []string{fieldDocID, fieldLineOffset, fieldContent, fieldRaw}

// bleveUnit is the document shape stored per line unit. Document ids are
// the decimal unit ids, so postings map straight back to units.
type bleveUnit struct {
	DocID      string `json:"doc_id"`
	LineOffset int    `json:"line_offset"`
	Content    string `json:"content"`
	Raw        string `json:"raw"`
}

type bleveBackend struct{}

func (bleveBackend) Name() string { return "bleve" }

// newLineMapping indexes content with a whitespace-only analyzer: content is
// already normalized, so bleve must not stem or filter it again.
func newLineMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(termsAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
	}); err != nil {
		return nil, fmt.Errorf("registering analyzer: %w", err)
	}

	content := mapping.NewTextFieldMapping()
	content.Analyzer = termsAnalyzerName
	content.Store = true
	content.IncludeTermVectors = true
	content.IncludeInAll = false

	raw := mapping.NewTextFieldMapping()
	raw.Index = false
	raw.Store = true
	raw.IncludeTermVectors = false
	raw.IncludeInAll = false

	docID := mapping.NewKeywordFieldMapping()
	docID.IncludeInAll = false

	offset := mapping.NewNumericFieldMapping()
	offset.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldContent, content)
	doc.AddFieldMappingsAt(fieldRaw, raw)
	doc.AddFieldMappingsAt(fieldDocID, docID)
	doc.AddFieldMappingsAt(fieldLineOffset, offset)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = termsAnalyzerName
	return im, nil
}

func (bleveBackend) Write(ctx context.Context, dir string, idx *index.MemoryIndex) (err error) {
	m, err := newLineMapping()
	if err != nil {
		return err
	}
	bi, err := bleve.New(dir, m)
	if err != nil {
		return fmt.Errorf("creating bleve index: %w", err)
	}
	defer func() {
		if cerr := bi.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing bleve index: %w", cerr)
		}
	}()

	batch := bi.NewBatch()
	for id, u := range idx.Units() {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := bleveUnit{DocID: u.DocID, LineOffset: u.LineOffset, Content: u.Normalized, Raw: u.Raw}
		if err := batch.Index(strconv.Itoa(id), doc); err != nil {
			return fmt.Errorf("indexing unit %d: %w", id, err)
		}
		if batch.Size() >= bleveBatchSize {
			if err := bi.Batch(batch); err != nil {
				return fmt.Errorf("writing batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := bi.Batch(batch); err != nil {
			return fmt.Errorf("writing batch: %w", err)
		}
	}

	stats, err := json.Marshal(idx.Stats())
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	if err := bi.SetInternal([]byte(statsKey), stats); err != nil {
		return fmt.Errorf("storing stats: %w", err)
	}
	return nil
}

func (bleveBackend) Open(dir string) (Reader, error) {
	bi, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening bleve index: %w", err)
	}
	raw, err := bi.GetInternal([]byte(statsKey))
	if err != nil || raw == nil {
		bi.Close()
		return nil, fmt.Errorf("bleve index %s has no stats: %v", dir, err)
	}
	var stats index.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		bi.Close()
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	return &bleveReader{idx: bi, stats: stats}, nil
}

type bleveReader struct {
	idx   bleve.Index
	stats index.Stats
}

// Search runs an exact term query on content and turns each hit into a
// posting.
func (r *bleveReader) Search(term string) (index.PostingList, error) {
	if r.stats.Units == 0 || term == "" {
		return nil, nil
	}
	q := bleve.NewTermQuery(term)
	q.SetField(fieldContent)
	req := bleve.NewSearchRequestOptions(q, r.stats.Units, 0, false)
	req.IncludeLocations = true
	res, err := r.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve term query %q: %w", term, err)
	}

	out := make(index.PostingList, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q", hit.ID)
		}
		locs := hit.Locations[fieldContent][term]
		positions := make([]int, 0, len(locs))
		for _, loc := range locs {
			positions = append(positions, int(loc.Pos)-1)
		}
		sort.Ints(positions)
		out = append(out, index.Posting{UnitID: uint32(id), Frequency: len(locs), Positions: positions})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UnitID < out[j].UnitID
	})
	return out, nil
}

// Unit loads the stored fields of one line by its document id.
func (r *bleveReader) Unit(id uint32) (index.LineUnit, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{strconv.FormatUint(uint64(id), 10)}))
	req.Fields = storedFields
	res, err := r.idx.Search(req)
	if err != nil {
		return index.LineUnit{}, fmt.Errorf("loading unit %d: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return index.LineUnit{}, fmt.Errorf("unit %d not found", id)
	}
	return unitFromFields(res.Hits[0].Fields), nil
}

func (r *bleveReader) Stats() index.Stats {
	return r.stats
}

func (r *bleveReader) Close() error {
	return r.idx.Close()
}

func unitFromFields(fields map[string]interface{}) index.LineUnit {
	u := index.LineUnit{}
	u.DocID, _ = fields[fieldDocID].(string)
	u.Normalized, _ = fields[fieldContent].(string)
	u.Raw, _ = fields[fieldRaw].(string)
	if off, ok := fields[fieldLineOffset].(float64); ok {
		u.LineOffset = int(off)
	}
	return u
}
