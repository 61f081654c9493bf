package publisher

import (
	"fmt"
	"sync"
)

// Report accumulates the outcome of one publish run. It is safe for
// concurrent use; sibling subtrees publish in parallel.
type Report struct {
	mu         sync.Mutex
	Created    []string
	Updated    []string
	Skipped    []string
	Reparented []string
	Failed     []string
	Pruned     []string
	Orphans    []string
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) AddCreated(path string) { r.add(&r.Created, path) }

func (r *Report) AddUpdated(path string) { r.add(&r.Updated, path) }

func (r *Report) AddSkipped(path string) { r.add(&r.Skipped, path) }

func (r *Report) AddReparented(path string) { r.add(&r.Reparented, path) }

func (r *Report) AddFailed(path string) { r.add(&r.Failed, path) }

func (r *Report) AddPruned(title string) { r.add(&r.Pruned, title) }

func (r *Report) AddOrphan(title string) { r.add(&r.Orphans, title) }

func (r *Report) add(dst *[]string, v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*dst = append(*dst, v)
}

// Writes counts remote mutations, the number that must be zero when
// republishing an unchanged tree.
func (r *Report) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Created) + len(r.Updated) + len(r.Reparented) + len(r.Pruned)
}

func (r *Report) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("created=%d updated=%d skipped=%d reparented=%d failed=%d pruned=%d orphans=%d",
		len(r.Created), len(r.Updated), len(r.Skipped), len(r.Reparented),
		len(r.Failed), len(r.Pruned), len(r.Orphans))
}
