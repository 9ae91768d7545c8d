// Package version implements semantic-version parsing, precedence, and
// per-function version resolution.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a parsed major.minor.patch version with an optional dotted
// prerelease identifier list. Build metadata is not modeled; Forrst
// function descriptors never carry it.
type SemVer struct {
	Major, Minor, Patch int
	Prerelease          []string
	raw                 string
}

// String returns the original version string.
func (v SemVer) String() string { return v.raw }

// IsStable reports whether v has no prerelease tag.
func (v SemVer) IsStable() bool { return len(v.Prerelease) == 0 }

// Parse parses a "major.minor.patch[-prerelease.id...]" string.
func Parse(s string) (SemVer, error) {
	raw := s
	core := s
	var pre []string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core = s[:i]
		pre = strings.Split(s[i+1:], ".")
	}
	segs := strings.Split(core, ".")
	if len(segs) != 3 {
		return SemVer{}, fmt.Errorf("invalid semver %q: expected major.minor.patch", s)
	}
	nums := make([]int, 3)
	for i, seg := range segs {
		n, err := strconv.Atoi(seg)
		if err != nil || n < 0 {
			return SemVer{}, fmt.Errorf("invalid semver %q: non-numeric component %q", s, seg)
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2], Prerelease: pre, raw: raw}, nil
}

// MustParse parses s, panicking on failure. Intended for static registrations
// of well-known versions at boot, not for handling caller input.
func MustParse(s string) SemVer {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0, or 1 per semver precedence: the core version
// compares numerically; a version with a prerelease tag
// always sorts before the same core version without one; two prerelease
// tag lists compare identifier-by-identifier (numeric identifiers compare
// numerically and are lower than alphanumeric ones; a shorter list that is
// a prefix of a longer one sorts first).
func Compare(a, b SemVer) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(a.Patch, b.Patch); c != 0 {
		return c
	}
	aStable, bStable := a.IsStable(), b.IsStable()
	if aStable && bStable {
		return 0
	}
	if aStable {
		return 1
	}
	if bStable {
		return -1
	}
	return comparePrerelease(a.Prerelease, b.Prerelease)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func comparePrerelease(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func compareIdentifier(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	aNum, bNum := aErr == nil, bErr == nil
	switch {
	case aNum && bNum:
		return compareInt(an, bn)
	case aNum:
		return -1
	case bNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b SemVer) bool { return Compare(a, b) < 0 }
