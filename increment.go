package trunkvers

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// incrementStrategyFinder reads forced increments from commit messages and expands
// merge commits into the commits they brought in.
type incrementStrategyFinder struct {
	config *Configuration
	repo   *gitRepository
}

func newIncrementStrategyFinder(cfg *Configuration, repo *gitRepository) *incrementStrategyFinder {
	return &incrementStrategyFinder{config: cfg, repo: repo}
}

// ForcedIncrement returns the most significant increment the message of c asks for.
// A no-bump marker wins over every other marker.
func (f *incrementStrategyFinder) ForcedIncrement(c *object.Commit, _ *EffectiveConfiguration) (VersionField, error) {
	return forcedIncrement(f.config, c.Message)
}

func forcedIncrement(cfg *Configuration, message string) (VersionField, error) {
	markers := []struct {
		pattern string
		field   VersionField
	}{
		{cfg.MajorVersionBumpMessage, Major},
		{cfg.MinorVersionBumpMessage, Minor},
		{cfg.PatchVersionBumpMessage, Patch},
	}

	if cfg.NoBumpMessage != "" {
		re, err := cfg.regexp(cfg.NoBumpMessage)
		if err != nil {
			return None, fmt.Errorf("compiling no-bump message %q: %w", cfg.NoBumpMessage, err)
		}
		if re.MatchString(message) {
			return None, nil
		}
	}

	for _, m := range markers {
		if m.pattern == "" {
			continue
		}
		re, err := cfg.regexp(m.pattern)
		if err != nil {
			return None, fmt.Errorf("compiling %s bump message %q: %w", m.field, m.pattern, err)
		}
		if re.MatchString(message) {
			return m.field, nil
		}
	}
	return None, nil
}

// MergedCommits returns the commits reachable from parent parentIndex of merge but not
// from its other parent, newest first. Index 1 lists what the merge brought in, index 0
// what the receiving side had on its own since the branches diverged.
func (f *incrementStrategyFinder) MergedCommits(merge *object.Commit, parentIndex int, ignore IgnoreConfiguration) ([]*object.Commit, error) {
	if merge.NumParents() < 2 {
		return nil, fmt.Errorf("commit %s is not a merge commit", shortHash(merge.Hash))
	}
	if parentIndex < 0 || parentIndex > 1 {
		return nil, fmt.Errorf("parent index %d out of range", parentIndex)
	}

	merged, err := merge.Parent(parentIndex)
	if err != nil {
		return nil, fmt.Errorf("getting parent %d of %s: %w", parentIndex, shortHash(merge.Hash), err)
	}
	base, err := merge.Parent(1 - parentIndex)
	if err != nil {
		return nil, fmt.Errorf("getting parent %d of %s: %w", 1-parentIndex, shortHash(merge.Hash), err)
	}

	var exclude map[plumbing.Hash]bool
	if f.repo != nil {
		exclude, err = f.repo.reachableFrom(base)
	} else {
		exclude, err = ancestors(base)
	}
	if err != nil {
		return nil, err
	}

	var commits []*object.Commit
	err = object.NewCommitPreorderIter(merged, exclude, nil).ForEach(func(c *object.Commit) error {
		if !ignore.Excludes(c) {
			commits = append(commits, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking merged commits of %s: %w", shortHash(merge.Hash), err)
	}
	return commits, nil
}

func ancestors(c *object.Commit) (map[plumbing.Hash]bool, error) {
	set := map[plumbing.Hash]bool{}
	err := object.NewCommitPreorderIter(c, nil, nil).ForEach(func(commit *object.Commit) error {
		set[commit.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking ancestors of %s: %w", shortHash(c.Hash), err)
	}
	return set, nil
}
