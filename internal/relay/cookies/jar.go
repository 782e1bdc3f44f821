package cookies

import (
	"fmt"
	"sort"
	"sync"
)

type entry struct {
	mu    sync.Mutex
	value string
	set   bool
}

// Jar is the process-wide per-origin cookie cache
type Jar struct {
	store   Store
	entries sync.Map // origin -> *entry
}

// NewJar creates a jar backed by store, seeded with its contents.
// A nil store means memory only.
func NewJar(store Store) (*Jar, error) {
	if store == nil {
		store = NewMemoryStore()
	}

	j := &Jar{store: store}

	persisted, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load cookie store: %w", err)
	}
	for origin, value := range persisted {
		j.entries.Store(origin, &entry{value: value, set: true})
	}
	return j, nil
}

func (j *Jar) entryFor(origin string) *entry {
	if e, ok := j.entries.Load(origin); ok {
		return e.(*entry)
	}
	e, _ := j.entries.LoadOrStore(origin, &entry{})
	return e.(*entry)
}

// Get returns the cookie header for an origin
func (j *Jar) Get(origin string) (string, bool) {
	e, ok := j.entries.Load(origin)
	if !ok {
		return "", false
	}
	ent := e.(*entry)
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.value, ent.set
}

// ForURL returns the cookie header for the origin of rawURL
func (j *Jar) ForURL(rawURL string) (string, bool) {
	origin, err := Origin(rawURL)
	if err != nil {
		return "", false
	}
	return j.Get(origin)
}

// Set replaces the cookie header for an origin
func (j *Jar) Set(origin, value string) error {
	return j.Update(origin, func(string, bool) (string, bool) {
		return value, true
	})
}

// Update atomically rewrites one origin's entry. fn receives the current
// value and returns the new value, or keep=false to delete the entry.
func (j *Jar) Update(origin string, fn func(current string, ok bool) (next string, keep bool)) error {
	ent := j.entryFor(origin)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	next, keep := fn(ent.value, ent.set)
	if !keep {
		if !ent.set {
			return nil
		}
		if err := j.store.Delete(origin); err != nil {
			return fmt.Errorf("delete cookie for %s: %w", origin, err)
		}
		ent.value, ent.set = "", false
		return nil
	}

	if err := j.store.Put(origin, next); err != nil {
		return fmt.Errorf("store cookie for %s: %w", origin, err)
	}
	ent.value, ent.set = next, true
	return nil
}

// Delete removes an origin's entry
func (j *Jar) Delete(origin string) error {
	return j.Update(origin, func(string, bool) (string, bool) {
		return "", false
	})
}

// Origins returns every origin with an entry, sorted
func (j *Jar) Origins() []string {
	var origins []string
	j.entries.Range(func(k, v any) bool {
		ent := v.(*entry)
		ent.mu.Lock()
		set := ent.set
		ent.mu.Unlock()
		if set {
			origins = append(origins, k.(string))
		}
		return true
	})
	sort.Strings(origins)
	return origins
}

// Snapshot returns a copy of every entry
func (j *Jar) Snapshot() map[string]string {
	out := make(map[string]string)
	for _, origin := range j.Origins() {
		if v, ok := j.Get(origin); ok {
			out[origin] = v
		}
	}
	return out
}
