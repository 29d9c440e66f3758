package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
)

// Reader serves postings from one segment file. The dictionary and the
// units table are held in memory; postings are read on demand.
type Reader struct {
	file   *os.File
	path   string
	header SegmentHeader
	dict   []DictEntry
	units  []index.LineUnit
	stats  index.Stats
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := readSegment(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

func readSegment(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("truncated file (%d bytes)", info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		UnitOffset: int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
		UnitSize:   int64(binary.LittleEndian.Uint64(headerBytes[56:64])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", header.Version)
	}
	if header.UnitOffset+header.UnitSize+int64(FooterSize) != info.Size() {
		return nil, fmt.Errorf("section sizes do not match file size")
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	unitBytes := make([]byte, header.UnitSize)
	if _, err := f.ReadAt(unitBytes, header.UnitOffset); err != nil {
		return nil, fmt.Errorf("reading units: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	want := binary.LittleEndian.Uint32(footer[0:4])
	got := crc32.Update(crc32.ChecksumIEEE(dictBytes), crc32.IEEETable, unitBytes)
	if want != got {
		return nil, fmt.Errorf("checksum mismatch: stored %08x, computed %08x", want, got)
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	var units []index.LineUnit
	if err := json.Unmarshal(unitBytes, &units); err != nil {
		return nil, fmt.Errorf("parsing units: %w", err)
	}

	stats := index.Stats{
		Units:     len(units),
		Documents: int(header.DocCount),
		Terms:     len(dict),
	}
	stats.Tokens = int(binary.LittleEndian.Uint64(footer[8:16]))
	if stats.Units > 0 {
		stats.AvgUnitLength = float64(stats.Tokens) / float64(stats.Units)
	}
	return &Reader{
		file:   f,
		header: header,
		dict:   dict,
		units:  units,
		stats:  stats,
	}, nil
}

func (r *Reader) Search(term string) (index.PostingList, error) {
	i := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if i >= len(r.dict) || r.dict[i].Term != term {
		return nil, nil
	}
	entry := r.dict[i]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("segment %s: reading postings for %q: %w", r.path, term, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("segment %s: parsing postings for %q: %w", r.path, term, err)
	}
	return postings, nil
}

func (r *Reader) Unit(id uint32) (index.LineUnit, error) {
	if int(id) >= len(r.units) {
		return index.LineUnit{}, fmt.Errorf("segment %s: unit %d out of range (%d units)", r.path, id, len(r.units))
	}
	return r.units[id], nil
}

func (r *Reader) Stats() index.Stats {
	return r.stats
}

func (r *Reader) Close() error {
	return r.file.Close()
}
