package trunkvers

import (
	"github.com/blang/semver"
)

// trunkContext is the state carried from one commit of a lineage to the next while its
// version increments are collected. A fresh context is used for every lineage.
type trunkContext struct {
	targetLabel  *string
	targetBranch string

	label           *string
	semanticVersion *semver.Version
	increment       VersionField
	force           bool

	incrementConsumed bool
}

func newTrunkContext(targetLabel *string, targetBranch string) *trunkContext {
	return &trunkContext{targetLabel: targetLabel, targetBranch: targetBranch}
}

// labelFor returns the label versions built from c carry: the target label on the target
// branch, the branch's own label policy elsewhere.
func (ctx *trunkContext) labelFor(c *Commit) *string {
	if c.BranchName == ctx.targetBranch {
		return ctx.targetLabel
	}
	return c.Configuration.LabelFor(c.BranchName, nil)
}

func (ctx *trunkContext) consume() {
	ctx.incrementConsumed = true
}

// pendingIncrement is the accumulated increment unless a rule already consumed it for
// the current commit.
func (ctx *trunkContext) pendingIncrement() VersionField {
	if ctx.incrementConsumed {
		return None
	}
	return ctx.increment
}

// enricher updates the context before or after the incrementers see a commit.
type enricher interface {
	enrich(it *Iteration, c *Commit, ctx *trunkContext)
}

type enrichSemanticVersion struct{}

func (enrichSemanticVersion) enrich(_ *Iteration, c *Commit, ctx *trunkContext) {
	if v, ok := c.highestMatching(ctx.targetLabel); ok {
		ctx.semanticVersion = &v
	}
}

type enrichIncrement struct{}

func (enrichIncrement) enrich(_ *Iteration, c *Commit, ctx *trunkContext) {
	ctx.increment = ctx.increment.Consolidate(c.Increment)
	ctx.label = ctx.labelFor(c)
}

type removeSemanticVersion struct{}

func (removeSemanticVersion) enrich(_ *Iteration, _ *Commit, ctx *trunkContext) {
	ctx.semanticVersion = nil
}

type removeIncrement struct{}

func (removeIncrement) enrich(_ *Iteration, _ *Commit, ctx *trunkContext) {
	if ctx.incrementConsumed {
		ctx.increment = None
		ctx.incrementConsumed = false
	}
}

var (
	preEnrichers  = []enricher{enrichSemanticVersion{}, enrichIncrement{}}
	postEnrichers = []enricher{removeSemanticVersion{}, removeIncrement{}}
)
