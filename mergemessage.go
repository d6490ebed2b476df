package trunkvers

import (
	"sort"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type mergeMessageFormat struct {
	name    string
	pattern string
}

// defaultMergeMessageFormats are tried after the configured formats, in this order.
var defaultMergeMessageFormats = []mergeMessageFormat{
	{"Default", `^Merge (branch|tag) '(?P<SourceBranch>[^']*)'(?: into (?P<TargetBranch>[^\s]*))*`},
	{"SmartGit", `^Finish (?P<SourceBranch>[^\s]*)(?: into (?P<TargetBranch>[^\s]*))*`},
	{"BitBucketPull", `^Merge pull request #(?P<PullRequestNumber>\d+) (from|in) (?P<Source>.*) from (?P<SourceBranch>[^\s]*) to (?P<TargetBranch>[^\s]*)`},
	{"BitBucketPullv7", `^Pull request #(?P<PullRequestNumber>\d+).*\r?\n\r?\nMerge in (?P<Source>.*) from (?P<SourceBranch>[^\s]*) to (?P<TargetBranch>[^\s]*)`},
	{"BitBucketCloudPull", `^Merged in (?P<SourceBranch>[^\s]*) \(pull request #(?P<PullRequestNumber>\d+)\)`},
	{"GitHubPull", `^Merge pull request #(?P<PullRequestNumber>\d+) (from|in) (?:[^\s\/]+\/)?(?P<SourceBranch>[^\s]*)(?: into (?P<TargetBranch>[^\s]*))*`},
	{"RemoteTracking", `^Merge remote-tracking branch '(?P<SourceBranch>[^\s]*)'(?: into (?P<TargetBranch>[^\s]*))*`},
	{"AzureDevOpsPull", `^Merge pull request (?P<PullRequestNumber>\d+) from (?P<SourceBranch>[^\s]*) into (?P<TargetBranch>[^\s]*)`},
}

// MergeMessage is what a recognised merge commit message says about the merge.
type MergeMessage struct {
	FormatName        string
	MergedBranch      string
	TargetBranch      string
	PullRequestNumber *int
	Version           *semver.Version
}

// ParseMergeMessage matches the message of c against the configured and the built-in
// merge message formats.
func ParseMergeMessage(c *object.Commit, cfg *Configuration) (*MergeMessage, bool) {
	return parseMergeMessage(c.Message, cfg)
}

func (c *Configuration) mergeMessageFormats() []mergeMessageFormat {
	names := make([]string, 0, len(c.MergeMessageFormats))
	for name := range c.MergeMessageFormats {
		names = append(names, name)
	}
	sort.Strings(names)

	formats := make([]mergeMessageFormat, 0, len(names)+len(defaultMergeMessageFormats))
	for _, name := range names {
		formats = append(formats, mergeMessageFormat{name, c.MergeMessageFormats[name]})
	}
	return append(formats, defaultMergeMessageFormats...)
}

func parseMergeMessage(message string, cfg *Configuration) (*MergeMessage, bool) {
	for _, format := range cfg.mergeMessageFormats() {
		re, err := cfg.regexp(format.pattern)
		if err != nil {
			continue
		}
		match := re.FindStringSubmatch(message)
		if match == nil {
			continue
		}

		mm := &MergeMessage{FormatName: format.name}
		for i, group := range re.SubexpNames() {
			switch group {
			case "SourceBranch":
				mm.MergedBranch = trimRemotePrefix(match[i])
			case "TargetBranch":
				mm.TargetBranch = trimRemotePrefix(match[i])
			case "PullRequestNumber":
				if n, err := strconv.Atoi(match[i]); err == nil {
					mm.PullRequestNumber = &n
				}
			}
		}
		if mm.MergedBranch != "" && cfg.BranchConfiguration(mm.MergedBranch).IsReleaseBranch {
			mm.Version = versionInBranchName(mm.MergedBranch, cfg)
		}
		return mm, true
	}
	return nil, false
}

func trimRemotePrefix(branch string) string {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	if rest, ok := strings.CutPrefix(branch, "refs/remotes/"); ok {
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[i+1:]
		}
		branch = rest
	}
	return strings.TrimPrefix(branch, "origin/")
}

// versionInBranchName finds a version in the last path segment of a branch name, as in
// release/1.2.0 or release-v1.2.
func versionInBranchName(branch string, cfg *Configuration) *semver.Version {
	segment := branch[strings.LastIndex(branch, "/")+1:]
	candidates := []string{segment}
	if i := strings.Index(segment, "-"); i >= 0 {
		candidates = append(candidates, segment[i+1:])
	}

	prefix, err := cfg.regexp("^(?:" + cfg.TagPrefix + ")")
	if err != nil {
		return nil
	}
	for _, candidate := range candidates {
		if loc := prefix.FindStringIndex(candidate); loc != nil {
			candidate = candidate[loc[1]:]
		}
		if candidate == "" || candidate[0] < '0' || candidate[0] > '9' {
			continue
		}
		if v, err := semver.ParseTolerant(candidate); err == nil {
			return &v
		}
	}
	return nil
}
