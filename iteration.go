package trunkvers

import (
	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/atomic"
)

// iterationIDs is shared by every resolution running in the process.
var iterationIDs = atomic.NewUint64(0)

// Iteration is one contiguous branch segment visited by the walker.
type Iteration struct {
	ID            uint64
	BranchName    string
	Configuration *EffectiveConfiguration
	Parent        *Iteration
	ParentCommit  *Commit

	// newest first, the order the walker visits them
	commits []*Commit
}

func newIteration(branch string, cfg *EffectiveConfiguration, parent *Iteration, parentCommit *Commit) *Iteration {
	return &Iteration{
		ID:            iterationIDs.Inc(),
		BranchName:    branch,
		Configuration: cfg,
		Parent:        parent,
		ParentCommit:  parentCommit,
	}
}

// Commits returns the commit records oldest first.
func (it *Iteration) Commits() []*Commit {
	out := make([]*Commit, len(it.commits))
	for i, c := range it.commits {
		out[len(it.commits)-1-i] = c
	}
	return out
}

func (it *Iteration) createCommit(value *object.Commit, branch string, cfg *EffectiveConfiguration, inc VersionField) *Commit {
	c := &Commit{
		Iteration:     it,
		Value:         value,
		BranchName:    branch,
		Configuration: cfg,
		Increment:     inc,
	}
	if n := len(it.commits); n > 0 {
		newer := it.commits[n-1]
		newer.Predecessor = c
		c.Successor = newer
	}
	it.commits = append(it.commits, c)
	return c
}

// Commit is a git commit as attributed to an iteration.
type Commit struct {
	Iteration        *Iteration
	Value            *object.Commit
	BranchName       string
	Configuration    *EffectiveConfiguration
	Increment        VersionField
	SemanticVersions []SemanticVersionTag
	ChildIterations  []*Iteration

	// Predecessor is the next older record of the iteration, Successor the next newer.
	Predecessor *Commit
	Successor   *Commit
}

func (c *Commit) addSemanticVersions(versions ...SemanticVersionTag) {
	c.SemanticVersions = append(c.SemanticVersions, versions...)
}

func (c *Commit) addChildIteration(it *Iteration) {
	c.ChildIterations = append(c.ChildIterations, it)
}

// IsMerge reports whether the underlying commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return c.Value.NumParents() > 1
}

// branchedFrom reports whether the next newer record belongs to a different branch,
// meaning the lineage was cut from this commit.
func (c *Commit) branchedFrom() bool {
	return c.Successor != nil && c.Successor.BranchName != c.BranchName
}

// highestMatching returns the highest version on the commit matching label.
func (c *Commit) highestMatching(label *string) (semver.Version, bool) {
	var best semver.Version
	found := false
	for _, v := range c.SemanticVersions {
		if !matchesLabel(v.Version, label) {
			continue
		}
		if !found || v.Version.GT(best) {
			best = v.Version
			found = true
		}
	}
	return best, found
}
