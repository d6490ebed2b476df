package trunkvers

import (
	"testing"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

func TestVersionFieldConsolidate(t *testing.T) {
	require.Equal(t, None, None.Consolidate())
	require.Equal(t, Minor, None.Consolidate(Patch, Minor, None))
	require.Equal(t, Major, Major.Consolidate(Patch))
	require.Equal(t, "Minor", Minor.String())
}

func TestPreReleaseLabel(t *testing.T) {
	tests := []struct {
		version string
		label   string
	}{
		{"1.0.0", ""},
		{"1.0.0-alpha.1", "alpha"},
		{"0.2.0-1", ""},
		{"1.0.0-feature.login.2", "feature.login"},
		{"1.0.0-rc", "rc"},
	}

	for _, test := range tests {
		t.Run(test.version, func(t *testing.T) {
			require.Equal(t, test.label, preReleaseLabel(semver.MustParse(test.version)))
		})
	}
}

func TestMatchesLabel(t *testing.T) {
	empty := stringPtr("")
	alpha := stringPtr("alpha")

	t.Run("Nil label matches anything", func(t *testing.T) {
		require.True(t, matchesLabel(semver.MustParse("1.0.0-beta.1"), nil))
		require.True(t, matchesLabel(semver.MustParse("1.0.0"), nil))
	})

	t.Run("Stable versions match every label", func(t *testing.T) {
		require.True(t, matchesLabel(semver.MustParse("1.0.0"), empty))
		require.True(t, matchesLabel(semver.MustParse("1.0.0"), alpha))
	})

	t.Run("Pre-releases match their own label only", func(t *testing.T) {
		require.True(t, matchesLabel(semver.MustParse("1.0.0-alpha.3"), alpha))
		require.False(t, matchesLabel(semver.MustParse("1.0.0-beta.3"), alpha))
		require.False(t, matchesLabel(semver.MustParse("1.0.0-alpha.3"), empty))
		require.True(t, matchesLabel(semver.MustParse("0.2.0-1"), empty))
	})
}

func TestIncrement(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		field       VersionField
		label       *string
		force       bool
		alternative string
		expected    string
	}{
		{"Stable patch", "1.0.0", Patch, stringPtr(""), false, "", "1.0.1"},
		{"Stable minor to label", "1.0.0", Minor, stringPtr("alpha"), false, "", "1.1.0-alpha.1"},
		{"Stable without increment", "1.0.0", None, stringPtr(""), false, "", "1.0.0"},
		{"Stable forced", "1.0.0", None, stringPtr(""), true, "", "1.0.1"},
		{"Stable to label", "1.0.0", None, stringPtr("feature"), false, "", "1.0.1-feature.1"},
		{"Stable keeps nil label", "1.0.0", Patch, nil, false, "", "1.0.1"},
		{"Pre-release covers minor", "1.1.0-alpha.1", Minor, stringPtr("alpha"), false, "", "1.1.0-alpha.2"},
		{"Pre-release covers patch", "1.0.1-alpha.1", Patch, stringPtr("alpha"), false, "", "1.0.1-alpha.2"},
		{"Pre-release does not cover major", "1.1.0-alpha.1", Major, stringPtr("alpha"), false, "", "2.0.0-alpha.1"},
		{"Pre-release does not cover minor", "1.0.1-alpha.1", Minor, stringPtr("alpha"), false, "", "1.1.0-alpha.1"},
		{"Pre-release same label", "1.1.0-alpha.1", None, stringPtr("alpha"), false, "", "1.1.0-alpha.1"},
		{"Pre-release same label forced", "1.1.0-alpha.1", None, stringPtr("alpha"), true, "", "1.1.0-alpha.2"},
		{"Pre-release keeps nil label", "1.1.0-alpha.1", None, nil, true, "", "1.1.0-alpha.2"},
		{"Pre-release to other label", "1.1.0-alpha.2", None, stringPtr("beta"), false, "", "1.1.0-beta.1"},
		{"Pre-release released", "1.1.0-alpha.3", None, stringPtr(""), false, "", "1.1.0"},
		{"Numeric pre-release", "0.2.0-1", None, stringPtr(""), false, "", "0.2.0-1"},
		{"Numeric pre-release forced", "0.2.0-1", None, stringPtr(""), true, "", "0.2.0-2"},
		{"Alternative floor", "1.0.0", Minor, stringPtr(""), false, "2.0.0", "2.0.0"},
		{"Alternative floor with label", "1.0.0", Minor, stringPtr("x"), false, "2.0.0-x.3", "2.0.0-x.3"},
		{"Alternative floor with other label", "1.0.0", Minor, stringPtr("x"), false, "2.0.0-y.3", "2.0.0-x.1"},
		{"Alternative below result", "3.0.0", Patch, stringPtr(""), false, "2.0.0", "3.0.1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var alternative *semver.Version
			if test.alternative != "" {
				v := semver.MustParse(test.alternative)
				alternative = &v
			}

			result := increment(semver.MustParse(test.version), test.field, test.label, test.force, alternative)
			require.Equal(t, test.expected, result.String())
		})
	}
}

func TestTaggedVersionsAdd(t *testing.T) {
	hash := plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")
	tags := TaggedVersions{}
	tags.add(hash, SemanticVersionTag{Version: semver.MustParse("1.0.0-alpha.1"), Tag: "v1.0.0-alpha.1"})
	tags.add(hash, SemanticVersionTag{Version: semver.MustParse("1.0.0"), Tag: "v1.0.0"})
	tags.add(hash, SemanticVersionTag{Version: semver.MustParse("0.9.0"), Tag: "v0.9.0"})

	require.Len(t, tags[hash], 3)
	require.Equal(t, "v1.0.0", tags[hash][0].Tag)
	require.Equal(t, "v1.0.0-alpha.1", tags[hash][1].Tag)
	require.Equal(t, "v0.9.0", tags[hash][2].Tag)
}
