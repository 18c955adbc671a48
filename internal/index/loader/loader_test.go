package loader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/internal/index/segment"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Report-Index-Search/pkg/resilience"
)

const indexJSON = `{"coal": ["R1", "R3"], "seam": ["R2", "R3"]}`

// doubleEncoded mirrors the published file: the index object stored as a
// JSON string.
func doubleEncoded(t *testing.T, doc string) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testConfig(url, dir string) config.IndexConfig {
	return config.IndexConfig{
		URL:              url,
		SnapshotDir:      dir,
		FetchTimeout:     time.Second,
		MaxAttempts:      2,
		RetryDelay:       time.Millisecond,
		FailureThreshold: 5,
		ResetTimeout:     time.Second,
	}
}

func TestBootstrapFromRemote(t *testing.T) {
	body := doubleEncoded(t, indexJSON)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	holder := index.NewHolder()
	reg := prometheus.NewRegistry()
	l := New(testConfig(srv.URL, dir), holder, metrics.New(reg))

	if err := l.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	snap := holder.Snapshot()
	if snap == nil || snap.Source != SourceRemote {
		t.Fatalf("snapshot = %+v, want remote source", snap)
	}
	ids, ok := snap.Index.Lookup("coal")
	if !ok || !reflect.DeepEqual(ids, []string{"R1", "R3"}) {
		t.Errorf("Lookup(coal) = %v, %v", ids, ok)
	}

	segs, err := segment.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Errorf("expected one snapshot segment, got %v", segs)
	}
}

func TestBootstrapFallsBackToSnapshot(t *testing.T) {
	dir := t.TempDir()
	seeded := index.New(map[string][]string{"gold": {"R9"}}, "seeded")
	if _, err := segment.NewWriter(dir).Write(seeded); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	holder := index.NewHolder()
	l := New(testConfig(srv.URL, dir), holder, nil)
	if err := l.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote called %d times, want 2 (retried)", got)
	}
	snap := holder.Snapshot()
	if snap.Source != SourceSnapshot || snap.Index.Version() != "seeded" {
		t.Errorf("snapshot = %+v, want seeded snapshot", snap)
	}
}

func TestBootstrapNothingAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	l := New(testConfig(srv.URL, t.TempDir()), index.NewHolder(), nil)
	err := l.Bootstrap(context.Background())
	if !errors.Is(err, apperrors.ErrIndexUnavailable) {
		t.Errorf("error = %v, want ErrIndexUnavailable", err)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	l := New(testConfig(srv.URL, ""), index.NewHolder(), nil)
	if _, err := l.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 403")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("remote called %d times, want 1", got)
	}
}

func TestFetchRejectsMalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["not", "an", "index"]`))
	}))
	defer srv.Close()

	l := New(testConfig(srv.URL, ""), index.NewHolder(), nil)
	if _, err := l.Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRefreshKeepsIndexWhenUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(indexJSON))
	}))
	defer srv.Close()

	dir := t.TempDir()
	holder := index.NewHolder()
	l := New(testConfig(srv.URL, dir), holder, nil)
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	first := holder.Snapshot()
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if holder.Snapshot() != first {
		t.Error("unchanged index should not be reinstalled")
	}
	segs, _ := segment.List(dir)
	if len(segs) != 1 {
		t.Errorf("unchanged index should not write another snapshot, got %v", segs)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "index.json")
	if err := os.WriteFile(jsonPath, doubleEncoded(t, indexJSON), 0644); err != nil {
		t.Fatal(err)
	}
	idx, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile(json) error = %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}

	name, err := segment.NewWriter(dir).Write(idx)
	if err != nil {
		t.Fatal(err)
	}
	fromSeg, err := LoadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("LoadFile(segment) error = %v", err)
	}
	if fromSeg.Version() != idx.Version() {
		t.Errorf("segment version %q, want %q", fromSeg.Version(), idx.Version())
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchOpensCircuit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, "")
	cfg.FailureThreshold = 2
	cfg.ResetTimeout = time.Hour
	l := New(cfg, index.NewHolder(), nil)

	if _, err := l.Fetch(context.Background()); err == nil {
		t.Fatal("expected fetch against failing host to fail")
	}
	st := l.FetchStatus()
	if st.State != resilience.StateOpen || st.Failures != 2 {
		t.Fatalf("FetchStatus() = %+v, want open after 2 failures", st)
	}

	_, err := l.Fetch(context.Background())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("remote called %d times, want 2 (open circuit short-circuits)", got)
	}
}

func TestRefreshOutlivesCancelledCaller(t *testing.T) {
	body := doubleEncoded(t, indexJSON)
	requested := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case requested <- struct{}{}:
		default:
		}
		<-release
		w.Write(body)
	}))
	defer srv.Close()

	holder := index.NewHolder()
	l := New(testConfig(srv.URL, ""), holder, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Refresh(ctx) }()
	<-requested
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for holder.Current() == nil {
		if time.Now().After(deadline) {
			t.Fatal("shared fetch was abandoned with its first caller")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := holder.Current().Lookup("coal"); !ok {
		t.Error("installed index is missing coal")
	}
	// A later caller gets a settled flight, not the cancelled one.
	if err := l.Refresh(context.Background()); err != nil {
		t.Errorf("follow-up Refresh() error = %v", err)
	}
}
