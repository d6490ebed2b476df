package trunkvers

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// RepositoryAccessor looks up branches and where other branches diverged from them.
type RepositoryAccessor interface {
	FindBranch(name string) (*Branch, bool)
	FindOriginsOf(branch *Branch, cfg *Configuration) ([]BranchCommit, error)
}

// TagIndex returns the semantic version tags reachable from a branch.
type TagIndex interface {
	TagsReachable(cfg *Configuration, branchCfg *EffectiveConfiguration, branch *Branch,
		label *string, notAfter time.Time) (TaggedVersions, error)
}

// IncrementStrategyFinder classifies commits and expands merges.
type IncrementStrategyFinder interface {
	ForcedIncrement(c *object.Commit, cfg *EffectiveConfiguration) (VersionField, error)
	MergedCommits(merge *object.Commit, parentIndex int, ignore IgnoreConfiguration) ([]*object.Commit, error)
}

// MergeMessageParser extracts the merged branch or version from a merge commit.
type MergeMessageParser func(c *object.Commit, cfg *Configuration) (*MergeMessage, bool)

type origin struct {
	branch *Branch
	config *EffectiveConfiguration
}

// walker builds the iteration tree of one resolution. It is not safe for reuse.
type walker struct {
	config     *Configuration
	repo       RepositoryAccessor
	tags       TagIndex
	finder     IncrementStrategyFinder
	parseMerge MergeMessageParser
	notAfter   time.Time
	log        *zap.Logger

	visited map[plumbing.Hash]bool
}

func newWalker(cfg *Configuration, repo RepositoryAccessor, tags TagIndex,
	finder IncrementStrategyFinder, notAfter time.Time, log *zap.Logger) *walker {
	if log == nil {
		log = zap.NewNop()
	}
	return &walker{
		config:     cfg,
		repo:       repo,
		tags:       tags,
		finder:     finder,
		parseMerge: ParseMergeMessage,
		notAfter:   notAfter,
		log:        log,
		visited:    map[plumbing.Hash]bool{},
	}
}

// commitsBranchedFrom maps every commit where another branch diverged from target to
// that branch and its configuration. A main branch replaces a non-main one on the same
// commit; otherwise the first branch in name order is kept.
func (w *walker) commitsBranchedFrom(target *Branch) map[plumbing.Hash]origin {
	result := map[plumbing.Hash]origin{}
	if target == nil || target.Head == nil {
		return result
	}

	origins, err := w.repo.FindOriginsOf(target, w.config)
	if err != nil {
		w.log.Debug("no branch origins", zap.String("branch", target.Name), zap.Error(err))
		return result
	}

	for _, o := range origins {
		cfg := w.config.BranchConfiguration(o.Branch.Name)
		existing, ok := result[o.Commit.Hash]
		if ok && (existing.config.IsMainBranch || !cfg.IsMainBranch) {
			continue
		}
		result[o.Commit.Hash] = origin{branch: o.Branch, config: cfg}
	}
	return result
}

func (w *walker) forcedIncrement(c *object.Commit, cfg *EffectiveConfiguration) (VersionField, error) {
	switch cfg.CommitMessageIncrementing {
	case CommitMessageIncrementEnabled:
		return w.finder.ForcedIncrement(c, cfg)
	case CommitMessageIncrementDisabled:
		return None, nil
	case CommitMessageIncrementMergeMessageOnly:
		if c.NumParents() > 1 {
			return w.finder.ForcedIncrement(c, cfg)
		}
		return None, nil
	default:
		return None, fmt.Errorf("%w: %q in branch configuration %q (commit %s)",
			ErrUnknownCommitMessageIncrementMode, cfg.CommitMessageIncrementing, cfg.Name,
			shortHash(c.Hash))
	}
}

// iterate attributes commits, given newest first, to it and recurses into traced
// merges. It returns true once a commit carries a version matching targetLabel, at which
// point the whole traversal stops.
func (w *walker) iterate(commits []*object.Commit, it *Iteration, target *Branch,
	targetLabel *string, tags TaggedVersions) (bool, error) {

	var origins map[plumbing.Hash]origin
	branch := it.BranchName
	cfg := it.Configuration

	for _, item := range commits {
		if w.visited[item.Hash] {
			continue
		}
		w.visited[item.Hash] = true

		if origins == nil {
			origins = w.commitsBranchedFrom(target)
		}
		if o, ok := origins[item.Hash]; ok && (!cfg.IsMainBranch || o.config.IsMainBranch) {
			w.log.Debug("branch origin",
				zap.Uint64("iteration", it.ID),
				zap.String("commit", shortHash(item.Hash)),
				zap.String("from", branch),
				zap.String("to", o.branch.Name))

			branch = o.branch.Name
			cfg = o.config
			refreshed, err := w.tags.TagsReachable(w.config, cfg, o.branch, nil, w.notAfter)
			if err != nil {
				return false, fmt.Errorf("collecting tags of %q: %w", branch, err)
			}
			tags = refreshed
		}

		inc, err := w.forcedIncrement(item, cfg)
		if err != nil {
			return false, err
		}

		commit := it.createCommit(item, branch, cfg, inc)
		commit.addSemanticVersions(tags[item.Hash]...)

		label := targetLabel
		if label == nil {
			label = cfg.LabelFor(branch, nil)
		}
		for _, v := range commit.SemanticVersions {
			if matchesLabel(v.Version, label) {
				w.log.Debug("found base version",
					zap.Uint64("iteration", it.ID),
					zap.String("commit", shortHash(item.Hash)),
					zap.String("tag", v.Tag))
				return true, nil
			}
		}

		if item.NumParents() < 2 {
			continue
		}

		done, err := w.merge(item, commit, it, target, targetLabel, tags, branch, cfg)
		if err != nil || done {
			return done, err
		}
	}
	return false, nil
}

func (w *walker) merge(item *object.Commit, commit *Commit, it *Iteration, target *Branch,
	targetLabel *string, tags TaggedVersions, branch string, cfg *EffectiveConfiguration) (bool, error) {

	parentIndex := 1
	var merged []*object.Commit
	expanded := false
	mergedCommits := func() ([]*object.Commit, error) {
		if expanded {
			return merged, nil
		}
		var err error
		merged, err = w.finder.MergedCommits(item, parentIndex, cfg.Ignore)
		if err != nil {
			return nil, fmt.Errorf("expanding merge %s: %w", shortHash(item.Hash), err)
		}
		expanded = true
		return merged, nil
	}

	if cfg.TrackMergeMessage {
		if msg, ok := w.parseMerge(item, w.config); ok {
			if msg.Version != nil {
				commit.addSemanticVersions(SemanticVersionTag{Version: *msg.Version})
				w.log.Debug("version from merge message",
					zap.String("commit", shortHash(item.Hash)),
					zap.String("version", msg.Version.String()))
				return true, nil
			}

			if msg.MergedBranch != "" {
				childBranch := msg.MergedBranch
				childCfg := w.config.BranchConfiguration(childBranch)
				if childCfg.IsMainBranch {
					if cfg.IsMainBranch {
						return false, fmt.Errorf("%w: %q merged into %q at commit %s",
							ErrTrunkMergedIntoTrunk, childBranch, branch, shortHash(item.Hash))
					}
					parentIndex = 0
					childCfg = cfg
					childBranch = branch
				}
				commits, err := mergedCommits()
				if err != nil {
					return false, err
				}

				child := newIteration(childBranch, childCfg, it, commit)
				w.log.Debug("tracing merge",
					zap.Uint64("iteration", child.ID),
					zap.Uint64("parent", it.ID),
					zap.String("commit", shortHash(item.Hash)),
					zap.String("branch", childBranch),
					zap.Int("commits", len(commits)))

				done, err := w.iterate(commits, child, target, targetLabel, tags)
				commit.addChildIteration(child)
				if err != nil || done {
					return done, err
				}
			}
		}
	}

	commits, err := mergedCommits()
	if err != nil {
		return false, err
	}
	for _, c := range commits {
		w.visited[c.Hash] = true
	}
	return false, nil
}
