package trunkvers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMergeMessage(t *testing.T) {
	cfg := DefaultConfiguration()

	tests := []struct {
		name     string
		message  string
		format   string
		branch   string
		target   string
		pr       int
		version  string
		matching bool
	}{
		{name: "Default", message: "Merge branch 'feature/login'", format: "Default", branch: "feature/login", matching: true},
		{name: "Default into", message: "Merge branch 'feature/login' into develop", format: "Default", branch: "feature/login", target: "develop", matching: true},
		{name: "Tag", message: "Merge tag 'v1.0.0'", format: "Default", branch: "v1.0.0", matching: true},
		{name: "SmartGit", message: "Finish feature/login", format: "SmartGit", branch: "feature/login", matching: true},
		{name: "GitHub", message: "Merge pull request #42 from org/feature/login\n\nAdd login", format: "GitHubPull", branch: "feature/login", pr: 42, matching: true},
		{name: "BitBucket", message: "Merge pull request #7 from repo from hotfix/crash to main", format: "BitBucketPull", branch: "hotfix/crash", target: "main", pr: 7, matching: true},
		{name: "BitBucket cloud", message: "Merged in feature/login (pull request #9)", format: "BitBucketCloudPull", branch: "feature/login", pr: 9, matching: true},
		{name: "Remote tracking", message: "Merge remote-tracking branch 'origin/feature/login' into main", format: "RemoteTracking", branch: "feature/login", target: "main", matching: true},
		{name: "Azure DevOps", message: "Merge pull request 12 from feature/login into main", format: "AzureDevOpsPull", branch: "feature/login", target: "main", pr: 12, matching: true},
		{name: "Release branch version", message: "Merge branch 'release/1.2.0'", format: "Default", branch: "release/1.2.0", version: "1.2.0", matching: true},
		{name: "Release branch prefixed version", message: "Merge branch 'release/v2.1'", format: "Default", branch: "release/v2.1", version: "2.1.0", matching: true},
		{name: "Release branch without version", message: "Merge branch 'release/next'", format: "Default", branch: "release/next", matching: true},
		{name: "Version ignored outside release branches", message: "Merge branch 'feature/1.2.0'", format: "Default", branch: "feature/1.2.0", matching: true},
		{name: "Plain commit", message: "Fix the build", matching: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			mm, ok := parseMergeMessage(test.message, cfg)
			require.Equal(t, test.matching, ok)
			if !test.matching {
				require.Nil(t, mm)
				return
			}

			require.Equal(t, test.format, mm.FormatName)
			require.Equal(t, test.branch, mm.MergedBranch)
			require.Equal(t, test.target, mm.TargetBranch)
			if test.pr == 0 {
				require.Nil(t, mm.PullRequestNumber)
			} else {
				require.NotNil(t, mm.PullRequestNumber)
				require.Equal(t, test.pr, *mm.PullRequestNumber)
			}
			if test.version == "" {
				require.Nil(t, mm.Version)
			} else {
				require.NotNil(t, mm.Version)
				require.Equal(t, test.version, mm.Version.String())
			}
		})
	}
}

func TestParseMergeMessageCustomFormat(t *testing.T) {
	cfg, err := ParseConfiguration([]byte(`
merge-message-formats:
  squash: '^Squashed (?P<SourceBranch>[^\s]+) into (?P<TargetBranch>[^\s]+)'
`))
	require.NoError(t, err)

	g := newTestGraph(t)
	c := g.commit("a", "Squashed feature/search into main")

	mm, ok := ParseMergeMessage(c, cfg)
	require.True(t, ok)
	require.Equal(t, "squash", mm.FormatName)
	require.Equal(t, "feature/search", mm.MergedBranch)
	require.Equal(t, "main", mm.TargetBranch)
}

func TestTrimRemotePrefix(t *testing.T) {
	require.Equal(t, "feature/x", trimRemotePrefix("refs/heads/feature/x"))
	require.Equal(t, "feature/x", trimRemotePrefix("refs/remotes/upstream/feature/x"))
	require.Equal(t, "feature/x", trimRemotePrefix("origin/feature/x"))
	require.Equal(t, "feature/x", trimRemotePrefix("feature/x"))
}
