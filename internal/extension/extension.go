// Package extension holds the registry of cross-cutting extensions and
// computes, per request, the active extension set.
package extension

import (
	"sort"
	"sync"

	"github.com/forrst/forrst/internal/eventbus"
	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/urn"
	"github.com/forrst/forrst/internal/version"
)

// Subscription is one (event, priority, handler) entry an extension
// contributes to the event bus. Lower Priority runs first; equal
// priorities tie-break by registration order, which Entries preserves with a
// stable sort over registration order each time it is called.
type Subscription struct {
	Event    eventbus.EventType
	Priority int
	Handler  eventbus.Handler
}

// Descriptor is a registered extension.
type Descriptor struct {
	URN           string
	IsGlobal      bool
	IsErrorFatal  bool
	Subscriptions []Subscription

	// Core marks a reserved-namespace extension; Register rejects
	// any non-Core descriptor whose URN claims the "cline" vendor.
	Core bool
}

// Registry holds all registered extensions keyed by URN. Populated at boot,
// read-only during serving.
type Registry struct {
	mu   sync.RWMutex
	exts map[string]Descriptor
	// order preserves registration order for subscription tie-breaking.
	order []string
}

// NewRegistry constructs an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{exts: make(map[string]Descriptor)}
}

// Register adds an extension descriptor.
func (r *Registry) Register(d Descriptor) error {
	parsed, ferr := urn.Parse(d.URN)
	if ferr != nil {
		return ferr
	}
	if ferr := urn.CheckRegistrable(parsed, d.Core); ferr != nil {
		return ferr
	}
	d.URN = parsed.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exts[d.URN]; exists {
		return ferrors.New(ferrors.KindInternalError, "duplicate extension registration").WithDetail("extension", d.URN)
	}
	r.exts[d.URN] = d
	r.order = append(r.order, d.URN)
	return nil
}

// Get returns the descriptor for urn, if registered.
func (r *Registry) Get(urn string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.exts[urn]
	return d, ok
}

// URNs returns every registered extension's URN in registration order, for
// the capabilities introspection function.
func (r *Registry) URNs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ActiveSet computes the per-request active extension list: all global
// extensions unconditionally, plus declared extensions intersected with
// the function's supported set (if any); the function's excluded set is
// then removed from the whole result. A declared URN that falls outside
// the function's supported set, or inside its excluded set, yields a fatal
// EXTENSION_NOT_APPLICABLE error. The supported set constrains only what a
// client may declare; it never evicts a global extension.
func (r *Registry) ActiveSet(declared []string, scope version.ExtensionScope) ([]Descriptor, *ferrors.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	supported := toSet(scope.Supported)
	excluded := toSet(scope.Excluded)

	normalizedDeclared := make([]string, len(declared))
	for i, d := range declared {
		if parsed, ferr := urn.Parse(d); ferr == nil {
			normalizedDeclared[i] = parsed.String()
		} else {
			normalizedDeclared[i] = d
		}
	}
	declared = normalizedDeclared

	active := make(map[string]Descriptor)
	for _, urn := range r.order {
		d := r.exts[urn]
		if d.IsGlobal {
			active[urn] = d
		}
	}

	for _, urn := range declared {
		d, ok := r.exts[urn]
		if !ok {
			return nil, ferrors.New(ferrors.KindExtensionNotSupported, "extension not registered").WithDetail("extension", urn)
		}
		if len(supported) > 0 && !supported[urn] {
			return nil, ferrors.New(ferrors.KindExtensionNotApplicable, "extension not applicable to this function").WithDetail("extension", urn)
		}
		if excluded[urn] {
			return nil, ferrors.New(ferrors.KindExtensionNotApplicable, "extension excluded for this function").WithDetail("extension", urn)
		}
		active[urn] = d
	}

	for urn := range excluded {
		delete(active, urn)
	}

	out := make([]Descriptor, 0, len(active))
	for _, urn := range r.order {
		if d, ok := active[urn]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// Entries flattens the active set's subscriptions for one event type into
// dispatch-ready eventbus.Entry values, sorted by (priority asc,
// registration order), tagged with each subscription's owning extension
// URN and fatal/advisory policy so eventbus.Dispatch can apply the
// fatal-vs-advisory error policy.
func Entries(active []Descriptor, event eventbus.EventType) []eventbus.Entry {
	type indexed struct {
		entry eventbus.Entry
		prio  int
		pos   int
	}
	var matched []indexed
	pos := 0
	for _, d := range active {
		for _, s := range d.Subscriptions {
			if s.Event != event {
				continue
			}
			matched = append(matched, indexed{
				entry: eventbus.Entry{ExtensionURN: d.URN, Fatal: d.IsErrorFatal, Handler: s.Handler},
				prio:  s.Priority,
				pos:   pos,
			})
			pos++
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].prio != matched[j].prio {
			return matched[i].prio < matched[j].prio
		}
		return matched[i].pos < matched[j].pos
	})
	out := make([]eventbus.Entry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out
}
