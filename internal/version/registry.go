package version

import (
	"sort"
	"sync"

	"github.com/forrst/forrst/internal/ferrors"
	"github.com/forrst/forrst/internal/urn"
)

// Stability is a function descriptor's maturity tag.
type Stability string

const (
	StabilityStable Stability = "stable"
	StabilityAlpha  Stability = "alpha"
	StabilityBeta   Stability = "beta"
	StabilityRC     Stability = "rc"
)

// SideEffect enumerates the mutation classes a function may declare.
type SideEffect string

const (
	SideEffectCreate SideEffect = "create"
	SideEffectUpdate SideEffect = "update"
	SideEffectDelete SideEffect = "delete"
)

// Deprecation carries the deprecated-version annotation attached to a
// response's meta when a deprecated version serves the call.
type Deprecation struct {
	Reason string `json:"reason"`
	Sunset string `json:"sunset,omitempty"`
}

// ExtensionScope restricts which extensions may run for a function.
// Supported and Excluded are mutually exclusive; the zero value (neither
// set) means "no restriction".
type ExtensionScope struct {
	Supported []string
	Excluded  []string
}

// ArgumentSpec describes one named argument accepted by a function.
type ArgumentSpec struct {
	Name     string
	Type     string // "string", "number", "boolean", "object", "array", "any"
	Required bool
}

// ResultSpec describes the shape of a function's successful result. The
// core records it for introspection only and never validates results
// against it.
type ResultSpec struct {
	Type string
}

// ErrorSpec documents one error kind a function may return.
type ErrorSpec struct {
	Code string
	When string
}

// Descriptor is a single registered (urn, version) function entry.
type Descriptor struct {
	URN         string
	Version     SemVer
	Stability   Stability
	SideEffects []SideEffect
	Arguments   []ArgumentSpec
	Result      ResultSpec
	Errors      []ErrorSpec
	Discoverable bool
	Deprecated  *Deprecation
	Extensions  ExtensionScope

	// Disabled gates invocation before the handler runs. Maintenance
	// windows are owned by the maintenance store; this flag covers the
	// "function permanently disabled" case that isn't a temporary window.
	Disabled bool

	// Core marks a reserved-namespace registration (a built-in system
	// function, or an extension's own reserved functions). Register rejects
	// any non-Core descriptor whose URN claims the "cline" vendor.
	Core bool

	// Handle is the registered function implementation. It is opaque to
	// the version resolver; the pipeline type-asserts it to the function
	// signature it expects.
	Handle any
}

// Registry holds all registered function descriptors keyed by URN, each
// with its set of registered versions. It is populated at boot and treated
// as read-only during serving.
type Registry struct {
	mu   sync.RWMutex
	fns  map[string][]Descriptor
}

// NewRegistry constructs an empty function registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string][]Descriptor)}
}

// Register adds a descriptor. It returns an error if (urn, version) is
// already registered or if Supported and Excluded are both set.
func (r *Registry) Register(d Descriptor) error {
	if len(d.Extensions.Supported) > 0 && len(d.Extensions.Excluded) > 0 {
		return ferrors.New(ferrors.KindInternalError, "function descriptor extensions.supported and extensions.excluded are mutually exclusive").
			WithDetail("function", d.URN)
	}

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
	for _, existing := range r.fns[d.URN] {
		if Compare(existing.Version, d.Version) == 0 {
			return ferrors.New(ferrors.KindInternalError, "duplicate function registration").
				WithDetail("function", d.URN).WithDetail("version", d.Version.String())
		}
	}
	r.fns[d.URN] = append(r.fns[d.URN], d)
	return nil
}

// Functions returns every registered function's URN, sorted, for the
// capabilities introspection function.
func (r *Registry) Functions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fns))
	for fn := range r.fns {
		out = append(out, fn)
	}
	sort.Strings(out)
	return out
}

// AvailableVersions returns the registered version strings for a function,
// in ascending precedence order.
func (r *Registry) AvailableVersions(fn string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := append([]Descriptor(nil), r.fns[fn]...)
	sort.Slice(descs, func(i, j int) bool { return Less(descs[i].Version, descs[j].Version) })
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Version.String()
	}
	return out
}

// Resolve picks the serving version: an exact match when a version is
// requested, else the highest stable (non-prerelease) version.
func (r *Registry) Resolve(fn string, requested *string) (Descriptor, *ferrors.Error) {
	if parsed, ferr := urn.Parse(fn); ferr == nil {
		fn = parsed.String()
	}

	r.mu.RLock()
	descs := r.fns[fn]
	r.mu.RUnlock()

	if len(descs) == 0 {
		return Descriptor{}, ferrors.New(ferrors.KindFunctionNotFound, "function not found").WithDetail("function", fn)
	}

	if requested != nil {
		want, err := Parse(*requested)
		if err != nil {
			return Descriptor{}, ferrors.New(ferrors.KindVersionNotFound, "malformed requested version").
				WithDetail("function", fn).WithDetail("requested_version", *requested)
		}
		for _, d := range descs {
			if Compare(d.Version, want) == 0 {
				return d, nil
			}
		}
		return Descriptor{}, ferrors.New(ferrors.KindVersionNotFound, "requested version not registered").
			WithDetail("function", fn).
			WithDetail("requested_version", *requested).
			WithDetail("available_versions", r.AvailableVersions(fn))
	}

	var best *Descriptor
	for i := range descs {
		d := &descs[i]
		if !d.Version.IsStable() {
			continue
		}
		if best == nil || Less(best.Version, d.Version) {
			best = d
		}
	}
	if best == nil {
		return Descriptor{}, ferrors.New(ferrors.KindVersionNotFound, "no stable version registered").
			WithDetail("function", fn).
			WithDetail("available_versions", r.AvailableVersions(fn))
	}
	return *best, nil
}
