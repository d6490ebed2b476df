package trunkvers

import (
	"fmt"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// VersionIncrement is one step of the version algebra: an *Operand or an *Operator.
type VersionIncrement interface {
	fmt.Stringer
	versionIncrement()
}

// Operand sets the running version outright.
type Operand struct {
	Source  string
	Version semver.Version
	Commit  *object.Commit
}

func (*Operand) versionIncrement() {}

func (o *Operand) String() string {
	return fmt.Sprintf("operand %s (%s)", o.Version, o.Source)
}

// Operator transforms whatever running version currently exists.
type Operator struct {
	Source      string
	Increment   VersionField
	Label       *string
	Force       bool
	Alternative *semver.Version
}

func (*Operator) versionIncrement() {}

func (o *Operator) String() string {
	label := "<keep>"
	if o.Label != nil {
		label = fmt.Sprintf("%q", *o.Label)
	}
	s := fmt.Sprintf("operator %s label=%s force=%t", o.Increment, label, o.Force)
	if o.Alternative != nil {
		s += fmt.Sprintf(" alternative=%s", o.Alternative)
	}
	return s + fmt.Sprintf(" (%s)", o.Source)
}

// BaseVersion is the running result of folding version increments: the last operand seen,
// updated by every operator applied since, and the pending operator not yet applied.
type BaseVersion struct {
	Source   string
	Version  semver.Version
	Operand  *Operand
	Operator *Operator
}

func newBaseVersion(o *Operand) *BaseVersion {
	return &BaseVersion{Source: o.Source, Version: o.Version, Operand: o}
}

// Apply makes op the pending operator, realising the previously pending one first.
func (b *BaseVersion) Apply(op *Operator) *BaseVersion {
	return &BaseVersion{
		Source:   op.Source,
		Version:  b.SemanticVersion(),
		Operand:  b.Operand,
		Operator: op,
	}
}

// SemanticVersion returns the version with the pending operator applied.
func (b *BaseVersion) SemanticVersion() semver.Version {
	if b.Operator == nil {
		return b.Version
	}
	op := b.Operator
	return increment(b.Version, op.Increment, op.Label, op.Force, op.Alternative)
}

// Fold reduces increments left to right. Operands replace the running result, operators
// apply to it, starting from 0.0.0 when no operand came first. Nil increments are skipped;
// a sequence holding nothing else leaves no base version.
func Fold(increments []VersionIncrement) (*BaseVersion, error) {
	if len(increments) == 0 {
		return nil, ErrNoVersionIncrements
	}

	var result *BaseVersion
	for _, inc := range increments {
		switch v := inc.(type) {
		case nil:
			continue
		case *Operand:
			if v == nil {
				continue
			}
			result = newBaseVersion(v)
		case *Operator:
			if v == nil {
				continue
			}
			if result == nil {
				result = &BaseVersion{Source: "initial"}
			}
			result = result.Apply(v)
		default:
			return nil, fmt.Errorf("unexpected version increment %T", inc)
		}
	}

	if result == nil {
		return nil, ErrMissingBaseVersion
	}
	return result, nil
}
