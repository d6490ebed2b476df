package trunkvers

import (
	"testing"

	"github.com/blang/semver"
	"github.com/stretchr/testify/require"
)

func operand(v string) *Operand {
	return &Operand{Source: "tag " + v, Version: semver.MustParse(v)}
}

func operator(inc VersionField, label *string, force bool) *Operator {
	return &Operator{Source: "test", Increment: inc, Label: label, Force: force}
}

func TestFold(t *testing.T) {
	t.Run("Empty sequence", func(t *testing.T) {
		_, err := Fold(nil)
		require.ErrorIs(t, err, ErrNoVersionIncrements)
	})

	t.Run("Nothing but nil increments", func(t *testing.T) {
		_, err := Fold([]VersionIncrement{nil, (*Operand)(nil), (*Operator)(nil)})
		require.ErrorIs(t, err, ErrMissingBaseVersion)
	})

	t.Run("Nil increments are skipped", func(t *testing.T) {
		base, err := Fold([]VersionIncrement{operand("1.0.0"), (*Operator)(nil), nil})
		require.NoError(t, err)
		require.Equal(t, "1.0.0", base.SemanticVersion().String())
		require.Nil(t, base.Operator)
	})

	t.Run("Operand only", func(t *testing.T) {
		base, err := Fold([]VersionIncrement{operand("1.2.3")})
		require.NoError(t, err)
		require.Equal(t, "1.2.3", base.SemanticVersion().String())
		require.Nil(t, base.Operator)
	})

	t.Run("Operator without operand starts at zero", func(t *testing.T) {
		base, err := Fold([]VersionIncrement{operator(Minor, stringPtr(""), false)})
		require.NoError(t, err)
		require.Nil(t, base.Operand)
		require.Equal(t, "0.1.0", base.SemanticVersion().String())
	})

	t.Run("Operators apply in order", func(t *testing.T) {
		base, err := Fold([]VersionIncrement{
			operand("1.0.0"),
			operator(Minor, stringPtr(""), false),
			operator(Patch, stringPtr(""), false),
		})
		require.NoError(t, err)
		require.Equal(t, "1.1.0", base.Version.String())
		require.Equal(t, Patch, base.Operator.Increment)
		require.Equal(t, "1.1.1", base.SemanticVersion().String())
	})

	t.Run("Operand replaces running result", func(t *testing.T) {
		base, err := Fold([]VersionIncrement{
			operand("1.0.0"),
			operator(Major, stringPtr(""), false),
			operand("1.5.0"),
		})
		require.NoError(t, err)
		require.Equal(t, "1.5.0", base.SemanticVersion().String())
		require.Equal(t, "tag 1.5.0", base.Source)
	})

	t.Run("No-op operator between operands", func(t *testing.T) {
		without, err := Fold([]VersionIncrement{
			operand("1.0.0"),
			operand("1.1.0-alpha.2"),
			operator(Patch, stringPtr("alpha"), true),
		})
		require.NoError(t, err)

		with, err := Fold([]VersionIncrement{
			operand("1.0.0"),
			operator(None, stringPtr(""), false),
			operand("1.1.0-alpha.2"),
			operator(Patch, stringPtr("alpha"), true),
		})
		require.NoError(t, err)

		require.Equal(t, without.SemanticVersion(), with.SemanticVersion())
		require.Equal(t, "1.1.0-alpha.3", with.SemanticVersion().String())
	})
}

func TestVersionIncrementString(t *testing.T) {
	require.Equal(t, "operand 1.0.0 (tag 1.0.0)", operand("1.0.0").String())

	alt := semver.MustParse("2.0.0")
	op := &Operator{Source: "merge", Increment: Minor, Label: stringPtr("beta"), Force: true, Alternative: &alt}
	require.Equal(t, `operator Minor label="beta" force=true alternative=2.0.0 (merge)`, op.String())
	require.Equal(t, "operator None label=<keep> force=false (test)", operator(None, nil, false).String())
}
