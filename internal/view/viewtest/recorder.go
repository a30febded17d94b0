// Package viewtest records render updates for assertions.
package viewtest

import (
	"sync"

	"speakerpanel/internal/view"
)

type Recorder struct {
	mu      sync.Mutex
	updates []view.Update
}

func (r *Recorder) Render(u view.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *Recorder) All() []view.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]view.Update(nil), r.updates...)
}

// Of returns the data of every update of kind k, oldest first.
func (r *Recorder) Of(k view.Kind) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, u := range r.updates {
		if u.Kind == k {
			out = append(out, u.Data)
		}
	}
	return out
}

// Last returns the most recent data of kind k.
func (r *Recorder) Last(k view.Kind) (any, bool) {
	all := r.Of(k)
	if len(all) == 0 {
		return nil, false
	}
	return all[len(all)-1], true
}

func (r *Recorder) Count(k view.Kind) int { return len(r.Of(k)) }

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
}
