// Package urn validates and canonicalizes Forrst URNs and resolves the
// legacy dotted-name form into the same registry as proper URNs.
package urn

import (
	"regexp"
	"strings"

	"github.com/forrst/forrst/internal/ferrors"
)

// Kind distinguishes a function URN from an extension URN.
type Kind string

const (
	KindFunction  Kind = "fn"
	KindExtension Kind = "ext"
)

// ReservedVendor is the vendor segment reserved for core functions and
// extensions. Non-core registrations using it are rejected.
const ReservedVendor = "cline"

// CoreNamespace is the canonical prefix core system functions and
// extensions register under.
const CoreNamespace = "urn:" + ReservedVendor + ":forrst:"

// legacyAliasNamespace is accepted as an alias of CoreNamespace at parse
// time and always normalized to the cline form.
const legacyAliasNamespace = "urn:forrst:"

var syntax = regexp.MustCompile(`^urn:[a-z][a-z0-9-]*:forrst:(ext|fn)(:[a-z][a-z0-9-]*)+$`)

var dottedName = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// URN is a parsed, validated Forrst URN.
type URN struct {
	Vendor string
	Kind   Kind
	// Segments are the path segments following the kind, e.g. for
	// urn:cline:forrst:ext:atomic-lock:fn:release the segments are
	// ["atomic-lock", "fn", "release"].
	Segments []string
	raw      string
}

// String returns the canonical form (legacy alias rewritten to the
// reserved-vendor form).
func (u URN) String() string { return u.raw }

// IsCore reports whether this URN is in the reserved cline vendor namespace.
func (u URN) IsCore() bool { return u.Vendor == ReservedVendor }

// Parse validates URN syntax and canonicalizes the legacy forrst-only alias
// namespace to the reserved urn:cline:forrst: form. Dotted compatibility
// names (e.g. "orders.create") are accepted as function references and
// synthesized into a third-party-vendor-less pseudo-URN for registry
// lookups; they are never core and never carry a kind segment ambiguity
// since they always denote functions.
func Parse(s string) (URN, *ferrors.Error) {
	if dottedName.MatchString(s) {
		return URN{Vendor: "", Kind: KindFunction, Segments: strings.Split(s, "."), raw: s}, nil
	}

	canon := s
	if strings.HasPrefix(s, legacyAliasNamespace) {
		canon = CoreNamespace + strings.TrimPrefix(s, legacyAliasNamespace)
	}

	if !syntax.MatchString(canon) {
		return URN{}, ferrors.New(ferrors.KindInvalidRequest, "malformed URN: "+s).WithDetail("urn", s)
	}

	parts := strings.Split(canon, ":")
	// parts[0]="urn" parts[1]=vendor parts[2]="forrst" parts[3]=kind parts[4:]=segments
	vendor := parts[1]
	kind := Kind(parts[3])
	segments := parts[4:]

	return URN{Vendor: vendor, Kind: kind, Segments: segments, raw: canon}, nil
}

// CheckRegistrable validates that a non-core registration does not attempt
// to claim the reserved cline vendor namespace.
func CheckRegistrable(u URN, core bool) *ferrors.Error {
	if u.Vendor == ReservedVendor && !core {
		return ferrors.New(ferrors.KindInvalidRequest, "vendor segment 'cline' is reserved for core registrations").
			WithDetail("urn", u.raw)
	}
	return nil
}

// Function builds a core function URN string, e.g. Function("ping") ->
// "urn:cline:forrst:fn:ping".
func Function(name string) string {
	return CoreNamespace + "fn:" + name
}

// ExtensionFunction builds a function URN scoped under an extension, e.g.
// ExtensionFunction("atomic-lock", "release") ->
// "urn:cline:forrst:ext:atomic-lock:fn:release".
func ExtensionFunction(ext, name string) string {
	return CoreNamespace + "ext:" + ext + ":fn:" + name
}

// Extension builds a core extension URN string.
func Extension(name string) string {
	return CoreNamespace + "ext:" + name
}
