package trunkvers

import (
	"fmt"

	"github.com/blang/semver"
	"go.uber.org/zap"
)

// incrementer is one rule of the increment engine. Every rule whose precondition holds
// for a commit contributes its increments, in registration order.
type incrementer interface {
	matches(it *Iteration, c *Commit, ctx *trunkContext) bool
	apply(e *engine, it *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error)
}

// plainCommit is an untagged commit that did not trace a merge. On trunk every commit
// is a release candidate; elsewhere the increment accumulates up to the branch head.
type plainCommit struct {
	trunk bool
}

func (r plainCommit) matches(_ *Iteration, c *Commit, ctx *trunkContext) bool {
	return c.Configuration.IsMainBranch == r.trunk &&
		ctx.semanticVersion == nil &&
		len(tracedChildren(c)) == 0
}

func (r plainCommit) apply(_ *engine, _ *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error) {
	if !r.trunk && c.Successor != nil {
		return nil, nil
	}
	op := &Operator{
		Source:    source("commit", c),
		Increment: ctx.increment,
		Label:     ctx.label,
		Force:     ctx.force,
	}
	ctx.consume()
	ctx.force = false
	return []VersionIncrement{op}, nil
}

// preReleaseTagCommit carries a pre-release version matching the target label. A
// pre-release followed by more commits forces the next operator to move past it.
type preReleaseTagCommit struct {
	trunk bool
	last  bool
}

func (r preReleaseTagCommit) matches(_ *Iteration, c *Commit, ctx *trunkContext) bool {
	return c.Configuration.IsMainBranch == r.trunk &&
		ctx.semanticVersion != nil && !isStable(*ctx.semanticVersion) &&
		(c.Successor == nil) == r.last
}

func (r preReleaseTagCommit) apply(_ *engine, _ *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error) {
	op := &Operand{Source: source("pre-release tag", c), Version: *ctx.semanticVersion, Commit: c.Value}
	ctx.consume()
	ctx.force = !r.last
	return []VersionIncrement{op}, nil
}

type stableTagCommit struct {
	trunk bool
	last  bool
}

func (r stableTagCommit) matches(_ *Iteration, c *Commit, ctx *trunkContext) bool {
	return c.Configuration.IsMainBranch == r.trunk &&
		ctx.semanticVersion != nil && isStable(*ctx.semanticVersion) &&
		(c.Successor == nil) == r.last
}

func (r stableTagCommit) apply(_ *engine, _ *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error) {
	incs := []VersionIncrement{
		&Operand{Source: source("stable tag", c), Version: *ctx.semanticVersion, Commit: c.Value},
	}
	ctx.consume()
	ctx.force = false

	// Off trunk, work after a release starts the next version of the branch policy.
	if !r.trunk && !r.last && !c.branchedFrom() {
		incs = append(incs, &Operator{
			Source:    source("commit after stable tag", c),
			Increment: c.Configuration.Increment,
			Label:     ctx.label,
		})
	}
	return incs, nil
}

// mergeCommit folds the iteration traced from a merge into the lineage. The merged
// version becomes the floor of the operator, the merged increment its field. On a
// non-trunk branch the increment keeps accumulating until the last merge.
type mergeCommit struct {
	trunk bool
	last  bool
}

func (r mergeCommit) matches(_ *Iteration, c *Commit, ctx *trunkContext) bool {
	return c.Configuration.IsMainBranch == r.trunk &&
		ctx.semanticVersion == nil &&
		len(tracedChildren(c)) > 0 &&
		(c.Successor == nil) == r.last
}

func (r mergeCommit) apply(e *engine, _ *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error) {
	childInc, alternative, err := e.resolveChildren(c, ctx)
	if err != nil {
		return nil, err
	}

	op := &Operator{
		Source:      source("merge", c),
		Label:       ctx.label,
		Alternative: alternative,
	}
	switch {
	case r.trunk || r.last:
		op.Increment = ctx.increment.Consolidate(childInc)
		op.Force = ctx.force || r.last
		ctx.consume()
		ctx.force = false
	default:
		ctx.increment = ctx.increment.Consolidate(childInc)
		op.Increment = None
	}
	return []VersionIncrement{op}, nil
}

// branchedCommit is the commit the next newer commit's branch was cut from. The
// branch it was cut to applies its own increment policy and label.
type branchedCommit struct {
	trunk   bool
	toTrunk bool
}

func (r branchedCommit) matches(_ *Iteration, c *Commit, _ *trunkContext) bool {
	return c.Configuration.IsMainBranch == r.trunk &&
		c.branchedFrom() &&
		c.Successor.Configuration.IsMainBranch == r.toTrunk
}

func (r branchedCommit) apply(_ *engine, _ *Iteration, c *Commit, ctx *trunkContext) ([]VersionIncrement, error) {
	inc := c.Successor.Configuration.Increment
	force := false
	if !r.trunk {
		inc = inc.Consolidate(ctx.pendingIncrement())
		force = ctx.force
		ctx.consume()
	}
	op := &Operator{
		Source:    fmt.Sprintf("branched %s to %s", source("commit", c), c.Successor.BranchName),
		Increment: inc,
		Label:     ctx.labelFor(c.Successor),
		Force:     force,
	}
	return []VersionIncrement{op}, nil
}

// incrementers in evaluation order: trunk rules first, then their non-trunk mirrors.
var incrementers = []incrementer{
	// trunk
	plainCommit{trunk: true},
	preReleaseTagCommit{trunk: true},
	preReleaseTagCommit{trunk: true, last: true},
	stableTagCommit{trunk: true},
	stableTagCommit{trunk: true, last: true},
	mergeCommit{trunk: true},
	mergeCommit{trunk: true, last: true},
	branchedCommit{trunk: true, toTrunk: true},
	branchedCommit{trunk: true},

	// non-trunk
	plainCommit{},
	preReleaseTagCommit{},
	preReleaseTagCommit{last: true},
	stableTagCommit{},
	stableTagCommit{last: true},
	mergeCommit{},
	mergeCommit{last: true},
	branchedCommit{toTrunk: true},
	branchedCommit{},
}

func source(kind string, c *Commit) string {
	return fmt.Sprintf("%s %s on %s", kind, shortHash(c.Value.Hash), c.BranchName)
}

func tracedChildren(c *Commit) []*Iteration {
	var children []*Iteration
	for _, child := range c.ChildIterations {
		if len(child.commits) > 0 {
			children = append(children, child)
		}
	}
	return children
}

// engine turns an iteration tree into version increments.
type engine struct {
	log *zap.Logger
}

func newEngine(log *zap.Logger) *engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &engine{log: log}
}

// increments runs the enrichers and incrementers over the commits of it, oldest first.
func (e *engine) increments(it *Iteration, ctx *trunkContext) ([]VersionIncrement, error) {
	var result []VersionIncrement
	for _, c := range it.Commits() {
		for _, p := range preEnrichers {
			p.enrich(it, c, ctx)
		}
		for _, r := range incrementers {
			if !r.matches(it, c, ctx) {
				continue
			}
			incs, err := r.apply(e, it, c, ctx)
			if err != nil {
				return nil, err
			}
			for _, inc := range incs {
				e.log.Debug("version increment",
					zap.Uint64("iteration", it.ID),
					zap.String("commit", shortHash(c.Value.Hash)),
					zap.Stringer("increment", inc))
			}
			result = append(result, incs...)
		}
		for _, p := range postEnrichers {
			p.enrich(it, c, ctx)
		}
	}
	return result, nil
}

// determineBaseVersion folds the increments of it into its base version.
func (e *engine) determineBaseVersion(it *Iteration, targetLabel *string, targetBranch string) (*BaseVersion, error) {
	incs, err := e.increments(it, newTrunkContext(targetLabel, targetBranch))
	if err != nil {
		return nil, err
	}
	base, err := Fold(incs)
	if err != nil {
		return nil, fmt.Errorf("iteration %d on %s: %w", it.ID, it.BranchName, err)
	}

	// A lineage no tag anchors grows from the increment policy of its branch.
	if base.Operand == nil && base.Operator != nil {
		op := *base.Operator
		op.Increment = op.Increment.Consolidate(it.Configuration.Increment)
		base.Operator = &op
	}
	return base, nil
}

// resolveChildren resolves the iterations traced from the merge c and returns their
// combined increment and the highest version they produced.
func (e *engine) resolveChildren(c *Commit, ctx *trunkContext) (VersionField, *semver.Version, error) {
	inc := None
	var alternative *semver.Version

	for _, child := range tracedChildren(c) {
		base, err := e.determineBaseVersion(child, ctx.targetLabel, ctx.targetBranch)
		if err != nil {
			return None, nil, err
		}

		if base.Operator != nil {
			inc = inc.Consolidate(base.Operator.Increment)
		}

		v := base.SemanticVersion()
		if alternative == nil || v.GT(*alternative) {
			alternative = &v
		}
		e.log.Debug("merged iteration",
			zap.Uint64("iteration", child.ID),
			zap.String("branch", child.BranchName),
			zap.Stringer("increment", inc),
			zap.String("version", v.String()))
	}
	return inc, alternative, nil
}
