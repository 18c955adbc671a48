package segment

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
)

// ErrNoSegment is returned by Latest when a directory holds no segment files.
var ErrNoSegment = errors.New("no index segment found")

type Reader struct {
	file        *os.File
	filePath    string
	header      SegmentHeader
	dict        []DictEntry
	meta        meta
	postingsCRC uint32
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := newReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if info.Size() < int64(HeaderSize+FooterSize) {
		return nil, fmt.Errorf("invalid segment file: %d bytes is too short", info.Size())
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := SegmentHeader{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(headerBytes[4:8]),
		TermCount:  binary.LittleEndian.Uint32(headerBytes[8:12]),
		DocCount:   binary.LittleEndian.Uint32(headerBytes[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(headerBytes[48:56])),
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment format version %d", header.Version)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(FooterSize)); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(dictBytes); want != got {
		return nil, fmt.Errorf("dictionary checksum mismatch: want %08x, got %08x", want, got)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}

	metaBytes := make([]byte, binary.LittleEndian.Uint64(footer[16:24]))
	if _, err := f.ReadAt(metaBytes, int64(binary.LittleEndian.Uint64(footer[8:16]))); err != nil {
		return nil, fmt.Errorf("reading segment metadata: %w", err)
	}
	var m meta
	if err := json.Unmarshal(metaBytes, &m); err != nil {
		return nil, fmt.Errorf("parsing segment metadata: %w", err)
	}

	return &Reader{
		file:        f,
		filePath:    path,
		header:      header,
		dict:        dict,
		meta:        m,
		postingsCRC: binary.LittleEndian.Uint32(footer[4:8]),
	}, nil
}

// Lookup reads the postings of a single term without loading the rest of
// the segment.
func (r *Reader) Lookup(term string) ([]string, bool, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Term != term {
		return nil, false, nil
	}
	entry := r.dict[idx]
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, false, fmt.Errorf("reading postings: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(postingsBytes, &ids); err != nil {
		return nil, false, fmt.Errorf("parsing postings: %w", err)
	}
	return ids, true, nil
}

// ReadIndex loads every term into a new index, verifying the postings
// checksum.
func (r *Reader) ReadIndex() (*index.Index, error) {
	postingsBytes := make([]byte, r.header.PostSize)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	if got := crc32.ChecksumIEEE(postingsBytes); got != r.postingsCRC {
		return nil, fmt.Errorf("postings checksum mismatch: want %08x, got %08x", r.postingsCRC, got)
	}
	postings := make(map[string][]string, len(r.dict))
	for _, entry := range r.dict {
		end := entry.PostOffset + int64(entry.PostLen)
		if entry.PostOffset < 0 || end > int64(len(postingsBytes)) {
			return nil, fmt.Errorf("postings for term %q out of range", entry.Term)
		}
		var ids []string
		if err := json.Unmarshal(postingsBytes[entry.PostOffset:end], &ids); err != nil {
			return nil, fmt.Errorf("parsing postings for term %q: %w", entry.Term, err)
		}
		postings[entry.Term] = ids
	}
	return index.New(postings, r.meta.IndexVersion), nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) IndexVersion() string {
	return r.meta.IndexVersion
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Load opens the segment at path and reads it into an index.
func Load(path string) (*index.Index, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadIndex()
}

// List returns the segment files in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading segment directory: %w", err)
	}
	segFiles := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FileExt) {
			segFiles = append(segFiles, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(segFiles)
	return segFiles, nil
}

// Latest returns the newest segment file in dir.
func Latest(dir string) (string, error) {
	segFiles, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(segFiles) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoSegment, dir)
	}
	return segFiles[len(segFiles)-1], nil
}

// Prune deletes all but the newest keep segment files in dir.
func Prune(dir string, keep int) (int, error) {
	segFiles, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(segFiles)-removed > keep {
		if err := os.Remove(segFiles[removed]); err != nil {
			return removed, fmt.Errorf("removing segment %s: %w", segFiles[removed], err)
		}
		removed++
	}
	return removed, nil
}
