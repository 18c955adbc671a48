package benchmark

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/segment"
)

// BenchmarkDecode measures decoding of the double-encoded index document.
func BenchmarkDecode(b *testing.B) {
	for _, terms := range []int{1000, 10000} {
		postings := make(map[string][]string, terms)
		for t := 0; t < terms; t++ {
			postings[fmt.Sprintf("term%d", t)] = []string{"CR000001", "CR000002", fmt.Sprintf("CR%06d", t)}
		}
		inner, _ := json.Marshal(postings)
		doc, _ := json.Marshal(string(inner))

		b.Run(fmt.Sprintf("terms_%d", terms), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(doc)))
			for i := 0; i < b.N; i++ {
				if _, err := index.Decode(doc); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSegmentWrite measures writing an index snapshot to disk.
func BenchmarkSegmentWrite(b *testing.B) {
	idx := buildIndex(1000, 100)
	w := segment.NewWriter(b.TempDir())
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Write(idx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSegmentLoad measures reading a snapshot back into memory, the
// start-up path when the remote index is unavailable.
func BenchmarkSegmentLoad(b *testing.B) {
	dir := b.TempDir()
	name, err := segment.NewWriter(dir).Write(buildIndex(1000, 100))
	if err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(dir, name)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := segment.Load(path); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSegmentLookup measures a single-term lookup straight from the
// segment file without loading the whole index.
func BenchmarkSegmentLookup(b *testing.B) {
	dir := b.TempDir()
	name, err := segment.NewWriter(dir).Write(buildIndex(1000, 100))
	if err != nil {
		b.Fatal(err)
	}
	r, err := segment.OpenReader(filepath.Join(dir, name))
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := r.Lookup("coal"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkHolderCurrent measures the read path every search takes to reach
// the installed index.
func BenchmarkHolderCurrent(b *testing.B) {
	h := index.NewHolder()
	h.Store(buildIndex(10, 10), "bench")
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if h.Current() == nil {
				b.Error("no index installed")
				return
			}
		}
	})
}
