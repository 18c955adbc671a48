// Package index holds the read-only inverted index that maps a normalized
// term to the identifiers of the reports containing it.
package index

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// TermEntry is one term and its postings, used when an index is written to
// or read from a segment file.
type TermEntry struct {
	Term   string   `json:"term"`
	DocIDs []string `json:"doc_ids"`
}

// Index is immutable once built and safe for concurrent readers.
type Index struct {
	postings map[string][]string
	version  string
	docCount int
}

// New copies postings into a new Index. When version is empty a content hash
// is used so that identical mappings share a version.
func New(postings map[string][]string, version string) *Index {
	copied := make(map[string][]string, len(postings))
	docs := make(map[string]struct{})
	for term, ids := range postings {
		c := make([]string, len(ids))
		copy(c, ids)
		copied[term] = c
		for _, id := range ids {
			docs[id] = struct{}{}
		}
	}
	idx := &Index{
		postings: copied,
		docCount: len(docs),
	}
	if version == "" {
		version = idx.contentHash()
	}
	idx.version = version
	return idx
}

// Lookup returns the postings for term. ok is false when term is not a key.
// The returned slice is shared with the index and must not be modified.
func (x *Index) Lookup(term string) ([]string, bool) {
	ids, ok := x.postings[term]
	return ids, ok
}

// Version identifies the content this index was built from.
func (x *Index) Version() string {
	return x.version
}

// Len returns the number of terms.
func (x *Index) Len() int {
	return len(x.postings)
}

// DocCount returns the number of distinct report identifiers.
func (x *Index) DocCount() int {
	return x.docCount
}

// Entries returns every term with its postings, sorted by term.
func (x *Index) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(x.postings))
	for term, ids := range x.postings {
		entries = append(entries, TermEntry{Term: term, DocIDs: ids})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (x *Index) contentHash() string {
	h := sha256.New()
	for _, e := range x.Entries() {
		ids := make([]string, len(e.DocIDs))
		copy(ids, e.DocIDs)
		sort.Strings(ids)
		fmt.Fprintf(h, "%q:", e.Term)
		for _, id := range ids {
			fmt.Fprintf(h, "%q,", id)
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
