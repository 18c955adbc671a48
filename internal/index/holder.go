package index

import (
	"sync/atomic"
	"time"
)

// Snapshot is an index together with the time it was installed.
type Snapshot struct {
	Index    *Index
	LoadedAt time.Time
	Source   string
}

// Holder publishes the current index to concurrent searches. Replacing the
// index never affects evaluations already holding the previous one.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Store installs idx as the current index.
func (h *Holder) Store(idx *Index, source string) {
	h.current.Store(&Snapshot{
		Index:    idx,
		LoadedAt: time.Now().UTC(),
		Source:   source,
	})
}

// Current returns the installed index, or nil before the first Store.
func (h *Holder) Current() *Index {
	if s := h.current.Load(); s != nil {
		return s.Index
	}
	return nil
}

// Snapshot returns the installed snapshot, or nil before the first Store.
func (h *Holder) Snapshot() *Snapshot {
	return h.current.Load()
}
