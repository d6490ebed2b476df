package trunkvers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing"
)

// VersionField identifies the part of a semantic version an increment targets.
type VersionField int

const (
	None VersionField = iota
	Patch
	Minor
	Major
)

func (f VersionField) String() string {
	switch f {
	case None:
		return "None"
	case Patch:
		return "Patch"
	case Minor:
		return "Minor"
	case Major:
		return "Major"
	default:
		return fmt.Sprintf("VersionField(%d)", int(f))
	}
}

// Consolidate returns the most significant of the given fields.
func (f VersionField) Consolidate(others ...VersionField) VersionField {
	result := f
	for _, o := range others {
		if o > result {
			result = o
		}
	}
	return result
}

// SemanticVersionTag is a version resolved onto a commit together with the tag it came from.
type SemanticVersionTag struct {
	Version semver.Version
	Tag     string
}

// TaggedVersions maps commit hashes to the versions tagged on them, highest first.
type TaggedVersions map[plumbing.Hash][]SemanticVersionTag

func (t TaggedVersions) add(hash plumbing.Hash, v SemanticVersionTag) {
	t[hash] = append(t[hash], v)
	sort.SliceStable(t[hash], func(i, j int) bool {
		return t[hash][i].Version.GT(t[hash][j].Version)
	})
}

func isStable(v semver.Version) bool {
	return len(v.Pre) == 0
}

// preReleaseLabel returns the alphanumeric identifiers of the pre-release joined by ".".
// Numeric identifiers are not part of the label, so 0.2.0-1 has the empty label.
func preReleaseLabel(v semver.Version) string {
	var parts []string
	for _, p := range v.Pre {
		if p.IsNum {
			break
		}
		parts = append(parts, p.VersionStr)
	}
	return strings.Join(parts, ".")
}

// matchesLabel reports whether v can serve as the base version for a branch building label.
// A nil label matches anything and stable versions match every label.
func matchesLabel(v semver.Version, label *string) bool {
	if label == nil || isStable(v) {
		return true
	}
	return preReleaseLabel(v) == *label
}

func newPreRelease(label string, number uint64) []semver.PRVersion {
	var pre []semver.PRVersion
	if label != "" {
		for _, part := range strings.Split(label, ".") {
			pre = append(pre, semver.PRVersion{VersionStr: part})
		}
	}
	return append(pre, semver.PRVersion{VersionNum: number, IsNum: true})
}

func bumpPreRelease(v *semver.Version) {
	for i := len(v.Pre) - 1; i >= 0; i-- {
		if v.Pre[i].IsNum {
			v.Pre[i].VersionNum++
			return
		}
	}
	v.Pre = append(v.Pre, semver.PRVersion{VersionNum: 1, IsNum: true})
}

func bumpField(v *semver.Version, field VersionField) {
	switch field {
	case Major:
		v.Major++
		v.Minor = 0
		v.Patch = 0
	case Minor:
		v.Minor++
		v.Patch = 0
	case Patch:
		v.Patch++
	}
	v.Pre = nil
}

func lessCore(a, b semver.Version) bool {
	a.Pre, a.Build = nil, nil
	b.Pre, b.Build = nil, nil
	return a.LT(b)
}

// increment applies an operator to v. The field is only bumped on a pre-release when the
// pre-release does not already cover it: 1.1.0-x.1 covers Minor and Patch but not Major.
// A label turns the result into a pre-release of that label, a stable result stays stable
// for the empty label and a nil label keeps whatever label v carries.
func increment(v semver.Version, field VersionField, label *string, force bool, alternative *semver.Version) semver.Version {
	r := semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
	r.Pre = append([]semver.PRVersion(nil), v.Pre...)

	wasStable := isStable(v)
	target := preReleaseLabel(v)
	if label != nil {
		target = *label
	} else if wasStable {
		target = ""
	}

	bumped := false
	switch {
	case field == None:
	case wasStable:
		bumpField(&r, field)
		bumped = true
	case field == Major && (r.Minor > 0 || r.Patch > 0):
		bumpField(&r, field)
		bumped = true
	case field == Minor && r.Patch > 0:
		bumpField(&r, field)
		bumped = true
	default:
		force = true
	}

	switch {
	case bumped:
		if target != "" {
			r.Pre = newPreRelease(target, 1)
		}
	case target == "":
		if !wasStable {
			if preReleaseLabel(v) != "" {
				r.Pre = nil
			} else if force {
				bumpPreRelease(&r)
			}
		} else if force {
			bumpField(&r, Patch)
		}
	case wasStable:
		bumpField(&r, Patch)
		r.Pre = newPreRelease(target, 1)
	case preReleaseLabel(v) != target:
		r.Pre = newPreRelease(target, 1)
	case force:
		bumpPreRelease(&r)
	}

	if alternative != nil && lessCore(r, *alternative) {
		r.Major, r.Minor, r.Patch = alternative.Major, alternative.Minor, alternative.Patch
		switch {
		case target == "":
			r.Pre = nil
		case preReleaseLabel(*alternative) == target && !isStable(*alternative):
			r.Pre = append([]semver.PRVersion(nil), alternative.Pre...)
		default:
			r.Pre = newPreRelease(target, 1)
		}
	}
	return r
}
