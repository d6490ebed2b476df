// Package trunkvers calculates semantic versions for Git commits under a trunk-based
// branching policy.
//
// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package trunkvers

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"go.uber.org/zap"
)

// OpenRepository opens a Git repository at the specified path
func OpenRepository(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

type versionTag struct {
	commit  plumbing.Hash
	version SemanticVersionTag
}

// gitRepository answers the walker's questions from a go-git repository. Results are
// memoised for the lifetime of one resolution.
type gitRepository struct {
	repo *git.Repository
	log  *zap.Logger

	reachable map[plumbing.Hash]map[plumbing.Hash]bool
	tags      []versionTag
	tagPrefix string
}

func newGitRepository(repo *git.Repository, log *zap.Logger) *gitRepository {
	return &gitRepository{
		repo:      repo,
		log:       log,
		reachable: map[plumbing.Hash]map[plumbing.Hash]bool{},
	}
}

// FindBranch looks name up as a local branch, then as a remote tracking branch.
func (r *gitRepository) FindBranch(name string) (*Branch, bool) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(name),
		plumbing.ReferenceName("refs/remotes/" + name),
		plumbing.NewRemoteReferenceName("origin", name),
	}
	for _, refName := range candidates {
		ref, err := r.repo.Reference(refName, true)
		if err != nil {
			continue
		}
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			continue
		}
		return &Branch{Name: name, Head: commit}, true
	}
	return nil, false
}

// FindOriginsOf returns, for every other local branch, the commit where it diverged from
// branch, ordered by branch name. Branches containing all of branch are skipped.
func (r *gitRepository) FindOriginsOf(branch *Branch, cfg *Configuration) ([]BranchCommit, error) {
	refs, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}

	var origins []BranchCommit
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if name == branch.Name {
			return nil
		}

		head, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return fmt.Errorf("getting head of %q: %w", name, err)
		}

		bases, err := head.MergeBase(branch.Head)
		if err != nil {
			return fmt.Errorf("finding merge base of %q and %q: %w", name, branch.Name, err)
		}
		if len(bases) == 0 || bases[0].Hash == branch.Head.Hash {
			return nil
		}
		if cfg != nil && cfg.Ignore.Excludes(bases[0]) {
			return nil
		}

		origins = append(origins, BranchCommit{
			Branch: &Branch{Name: name, Head: head},
			Commit: bases[0],
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(origins, func(i, j int) bool {
		return origins[i].Branch.Name < origins[j].Branch.Name
	})
	return origins, nil
}

// CommitLog returns the history of from in committer time order, newest first, without
// the commits ignore excludes. A merged-in commit younger than the first-parent chain is
// visited before the older commits of that chain.
func (r *gitRepository) CommitLog(from *object.Commit, ignore IgnoreConfiguration) ([]*object.Commit, error) {
	iter := object.NewCommitIterCTime(from, nil, nil)
	defer iter.Close()

	var commits []*object.Commit
	err := iter.ForEach(func(c *object.Commit) error {
		if !ignore.Excludes(c) {
			commits = append(commits, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking log of %s: %w", shortHash(from.Hash), err)
	}
	return commits, nil
}

func (r *gitRepository) reachableFrom(c *object.Commit) (map[plumbing.Hash]bool, error) {
	if set, ok := r.reachable[c.Hash]; ok {
		return set, nil
	}

	set, err := ancestors(c)
	if err != nil {
		return nil, err
	}
	r.reachable[c.Hash] = set
	return set, nil
}

// TagsReachable returns the semantic version tags on commits reachable from the head of
// branch and committed no later than notAfter. A non-nil label keeps only versions
// matching it.
func (r *gitRepository) TagsReachable(cfg *Configuration, branchCfg *EffectiveConfiguration,
	branch *Branch, label *string, notAfter time.Time) (TaggedVersions, error) {

	tags, err := r.versionTags(cfg)
	if err != nil {
		return nil, err
	}
	reachable, err := r.reachableFrom(branch.Head)
	if err != nil {
		return nil, err
	}

	result := TaggedVersions{}
	for _, tag := range tags {
		if !reachable[tag.commit] || !matchesLabel(tag.version.Version, label) {
			continue
		}
		commit, err := r.repo.CommitObject(tag.commit)
		if err != nil {
			return nil, fmt.Errorf("getting commit of tag %q: %w", tag.version.Tag, err)
		}
		if commit.Committer.When.After(notAfter) || branchCfg.Ignore.Excludes(commit) {
			continue
		}
		result.add(tag.commit, tag.version)
	}

	r.log.Debug("collected tags",
		zap.String("branch", branch.Name),
		zap.Int("commits", len(result)),
		zap.Time("notAfter", notAfter))
	return result, nil
}

// versionTags lists every tag parsing as a semantic version after the tag prefix.
func (r *gitRepository) versionTags(cfg *Configuration) ([]versionTag, error) {
	if r.tags != nil && r.tagPrefix == cfg.TagPrefix {
		return r.tags, nil
	}

	prefix, err := cfg.regexp("^(?:" + cfg.TagPrefix + ")")
	if err != nil {
		return nil, fmt.Errorf("compiling tag prefix %q: %w", cfg.TagPrefix, err)
	}

	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	tags := []versionTag{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		name := ref.Name().Short()
		loc := prefix.FindStringIndex(name)
		if loc == nil {
			return nil
		}
		version, err := semver.Parse(name[loc[1]:])
		if err != nil {
			return nil
		}

		target := ref.Hash()
		obj, err := r.repo.TagObject(ref.Hash())
		switch err {
		case nil:
			// Annotated tag
			commit, err := obj.Commit()
			if err != nil {
				return nil
			}
			target = commit.Hash
		case plumbing.ErrObjectNotFound:
			// Lightweight tag
		default:
			return err
		}

		tags = append(tags, versionTag{
			commit:  target,
			version: SemanticVersionTag{Version: version, Tag: name},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}

	r.tags = tags
	r.tagPrefix = cfg.TagPrefix
	return tags, nil
}

// headBranch returns the short name of the checked out branch.
func headBranch(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// branchContaining finds a local branch whose head is hash, for detached checkouts.
func branchContaining(repo *git.Repository, hash plumbing.Hash) (string, bool) {
	refs, err := repo.Branches()
	if err != nil {
		return "", false
	}

	var names []string
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Hash() == hash {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

func workTreeIsDirty(repo *git.Repository) (bool, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("getting worktree: %w", err)
	}

	// Fast path for filesystem storage
	if _, ok := repo.Storer.(*filesystem.Storage); ok {
		return checkDirtyWithGitCommand(workTree.Filesystem.Root())
	}

	status, err := workTree.Status()
	if err != nil {
		return false, fmt.Errorf("getting git status: %w", err)
	}

	return !status.IsClean(), nil
}

func checkDirtyWithGitCommand(repoPath string) (bool, error) {
	cmd := exec.Command("git", "update-index", "-q", "--refresh")
	cmd.Dir = repoPath
	if err := cmd.Run(); err != nil {
		// If update-index fails, assume dirty
		return true, nil
	}

	cmd = exec.Command("git", "diff-files", "--name-status", "--ignore-space-at-eol")
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return true, nil
		}
		return false, err
	}

	return len(output) > 0, nil
}
