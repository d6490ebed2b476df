// Package trunkvers calculates semantic versions for Git commits under a trunk-based
// branching policy.
//
// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package trunkvers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Resolve walks the history of the target commit and folds it into its semantic version.
func Resolve(opts Options) (*Result, error) {
	if opts.Repository == nil {
		return nil, ErrRepositoryRequired
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Configuration
	if cfg == nil {
		cfg = DefaultConfiguration()
	}

	repo := newGitRepository(opts.Repository, log)
	commit, branchName, err := resolveTarget(opts, repo)
	if err != nil {
		return nil, err
	}

	eff := cfg.BranchConfiguration(branchName)
	target := &Branch{Name: branchName, Head: commit}
	targetLabel := eff.LabelFor(branchName, opts.Label)
	notAfter := commit.Committer.When

	commits, err := repo.CommitLog(commit, eff.Ignore)
	if err != nil {
		return nil, err
	}
	tags, err := repo.TagsReachable(cfg, eff, target, nil, notAfter)
	if err != nil {
		return nil, fmt.Errorf("collecting tags: %w", err)
	}

	root := newIteration(branchName, eff, nil, nil)
	log.Debug("resolving version",
		zap.Uint64("iteration", root.ID),
		zap.String("branch", branchName),
		zap.String("configuration", eff.Name),
		zap.String("commit", shortHash(commit.Hash)),
		zap.Int("commits", len(commits)))

	w := newWalker(cfg, repo, repo, newIncrementStrategyFinder(cfg, repo), notAfter, log)
	found, err := w.iterate(commits, root, target, targetLabel, tags)
	if err != nil {
		return nil, err
	}

	base, err := newEngine(log).determineBaseVersion(root, targetLabel, branchName)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Version:     base.SemanticVersion(),
		BaseVersion: base,
		Iteration:   root,
		Found:       found,
		Branch:      branchName,
		ShortHash:   shortHash(commit.Hash),
		Timestamp:   commit.Committer.When,
	}

	if opts.CheckDirty {
		result.Dirty, err = workTreeIsDirty(opts.Repository)
		if err != nil {
			return nil, fmt.Errorf("checking worktree: %w", err)
		}
	}

	log.Debug("resolved version",
		zap.String("version", result.Version.String()),
		zap.String("base", base.Source),
		zap.Bool("found", found))
	return result, nil
}

// resolveTarget finds the commit to version and the branch it is built from.
func resolveTarget(opts Options, repo RepositoryAccessor) (*object.Commit, string, error) {
	if opts.Commitish == "" && opts.Branch != "" {
		branch, ok := repo.FindBranch(opts.Branch)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrBranchNotFound, opts.Branch)
		}
		return branch.Head, branch.Name, nil
	}

	commitish := opts.Commitish
	if commitish == "" {
		commitish = plumbing.Revision(plumbing.HEAD)
	}
	hash, err := opts.Repository.ResolveRevision(commitish)
	if err != nil {
		return nil, "", fmt.Errorf("resolving %q: %w", commitish, err)
	}
	commit, err := opts.Repository.CommitObject(*hash)
	if err != nil {
		return nil, "", fmt.Errorf("getting commit %s: %w", shortHash(hash), err)
	}

	if opts.Branch != "" {
		return commit, opts.Branch, nil
	}
	if commitish != plumbing.Revision(plumbing.HEAD) {
		if name, ok := branchContaining(opts.Repository, *hash); ok {
			return commit, name, nil
		}
	}
	name, err := headBranch(opts.Repository)
	if err == nil {
		return commit, name, nil
	}
	if name, ok := branchContaining(opts.Repository, *hash); ok {
		return commit, name, nil
	}
	return nil, "", err
}

// Calculate determines version strings for multiple language ecosystems
// based on Git repository state and tags
func Calculate(opts Options) (*LanguageVersions, error) {
	result, err := Resolve(opts)
	if err != nil {
		return nil, fmt.Errorf("resolving version: %w", err)
	}

	hash := result.ShortHash
	if opts.OmitCommitHash {
		hash = ""
	}
	return buildLanguageVersions(result.Version, hash, result.Dirty), nil
}

// CalculateFromString parses an existing version string and converts it
// to different language-specific formats
func CalculateFromString(version string) (*LanguageVersions, error) {
	// Strip leading "v" if present
	normalised := strings.TrimPrefix(version, "v")

	if parts := strings.SplitN(normalised, ".", 3); len(parts) != 3 {
		return nil, fmt.Errorf("version must have exactly 3 parts: %q", version)
	}

	v, err := semver.Parse(normalised)
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", version, err)
	}

	var hash string
	dirty := false
	for _, b := range v.Build {
		switch b {
		case "dirty":
			dirty = true
		default:
			hash = b
		}
	}
	v.Build = nil
	return buildLanguageVersions(v, hash, dirty), nil
}

// buildLanguageVersions renders v for each ecosystem. Pre-release versions carry the
// commit hash as build metadata.
func buildLanguageVersions(v semver.Version, hash string, dirty bool) *LanguageVersions {
	version := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	pythonVersion := version + pythonPreRelease(v)

	var build []string
	if len(v.Pre) > 0 {
		pre := make([]string, len(v.Pre))
		for i, p := range v.Pre {
			pre[i] = p.String()
		}
		version += "-" + strings.Join(pre, ".")
		if hash != "" {
			build = append(build, hash)
		}
	}

	// Add dirty suffix if needed
	if dirty {
		build = append(build, "dirty")
		pythonVersion += "+dirty"
	}
	if len(build) > 0 {
		version += "+" + strings.Join(build, ".")
	}

	return &LanguageVersions{
		SemVer:     version,
		Python:     pythonVersion,
		JavaScript: "v" + version,
		DotNet:     version,
		Go:         "v" + version,
	}
}

// pythonPreRelease renders the pre-release of v as a PEP 440 suffix. Labels without a
// PEP 440 equivalent become development releases.
func pythonPreRelease(v semver.Version) string {
	if len(v.Pre) == 0 {
		return ""
	}

	number := uint64(0)
	for _, p := range v.Pre {
		if p.IsNum {
			number = p.VersionNum
		}
	}
	n := strconv.FormatUint(number, 10)

	switch preReleaseLabel(v) {
	case "alpha", "a":
		return "a" + n
	case "beta", "b":
		return "b" + n
	case "rc":
		return "rc" + n
	default:
		return ".dev" + n
	}
}

// GenerateFallbackVersion creates a default development version when git is unavailable
func GenerateFallbackVersion() *LanguageVersions {
	return &LanguageVersions{
		SemVer:     "0.0.0-dev",
		Python:     "0.0.0.dev0",
		JavaScript: "v0.0.0-dev",
		DotNet:     "0.0.0-dev",
		Go:         "v0.0.0-dev",
	}
}
