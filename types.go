// Package trunkvers calculates semantic versions for Git commits under a trunk-based
// branching policy.
//
// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package trunkvers

import (
	"errors"
	"time"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Configuration errors abort a resolution.
var (
	// ErrUnknownCommitMessageIncrementMode indicates a commit-message-incrementing value
	// other than Enabled, Disabled or MergeMessageOnly.
	ErrUnknownCommitMessageIncrementMode = errors.New("unknown commit message increment mode")

	// ErrTrunkMergedIntoTrunk indicates a main branch merged into another main branch,
	// which has no defined attribution.
	ErrTrunkMergedIntoTrunk = errors.New("merging a main branch into a main branch is not supported")
)

// Logic errors are defects, not user-recoverable conditions.
var (
	// ErrNoVersionIncrements indicates a lineage produced no version operations.
	ErrNoVersionIncrements = errors.New("no version increments to fold")

	// ErrMissingBaseVersion indicates folding finished without a base version.
	ErrMissingBaseVersion = errors.New("no base version after folding increments")
)

var (
	// ErrRepositoryRequired indicates Options carried no repository.
	ErrRepositoryRequired = errors.New("repository is required")

	// ErrBranchNotFound indicates a requested branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrDetachedHead indicates no branch is checked out and none was named.
	ErrDetachedHead = errors.New("HEAD is detached; a branch name is required")
)

// LanguageVersions contains version strings for different language ecosystems
type LanguageVersions struct {
	SemVer     string `json:"semver"`
	Python     string `json:"python"`
	JavaScript string `json:"javascript"`
	DotNet     string `json:"dotnet"`
	Go         string `json:"go"`
}

// Options configures version calculation behavior
type Options struct {
	// Repository is the Git repository to analyze
	Repository *git.Repository

	// Commitish specifies which commit to analyze (default: "HEAD", or the head of Branch)
	Commitish plumbing.Revision

	// Branch names the branch the commit is built from (default: the checked out branch)
	Branch string

	// Configuration is the versioning policy (default: DefaultConfiguration())
	Configuration *Configuration

	// Label overrides the pre-release label of the branch
	Label *string

	// OmitCommitHash excludes commit hash from pre-release versions
	OmitCommitHash bool

	// CheckDirty marks versions built from a modified worktree
	CheckDirty bool

	// Logger receives debug output of the traversal (default: no logging)
	Logger *zap.Logger
}

// Branch is a named line of history and the commit at its head.
type Branch struct {
	Name string
	Head *object.Commit
}

// BranchCommit pairs a branch with a commit of interest on it.
type BranchCommit struct {
	Branch *Branch
	Commit *object.Commit
}

// Result is the outcome of resolving the version of a commit.
type Result struct {
	Version     semver.Version
	BaseVersion *BaseVersion
	Iteration   *Iteration
	Found       bool
	Branch      string
	Dirty       bool
	ShortHash   string
	Timestamp   time.Time
}
