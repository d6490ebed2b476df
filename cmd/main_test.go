package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/jaxxstorm/trunkvers"
	"github.com/stretchr/testify/require"
)

// testRepo creates a repository in a temporary directory with one commit per message.
func testRepo(t *testing.T, messages ...string) (string, *git.Repository, []plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	var hashes []plumbing.Hash
	for i, message := range messages {
		name := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(name, []byte(message), 0o644))
		_, err = wt.Add("file.txt")
		require.NoError(t, err)

		hash, err := wt.Commit(message, &git.CommitOptions{Author: &object.Signature{
			Name:  "test",
			Email: "test@example.com",
			When:  time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		}})
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}
	return dir, repo, hashes
}

func TestIsVersionString(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1.2.3", true},
		{"v1.2.3", true},
		{"1.2.3-alpha.1", true},
		{"v2.0.0-beta.2", true},
		{"HEAD", false},
		{"main", false},
		{"feature/branch", false},
		{"abc123def", false},
		{"", false},
		{"1.2", false}, // Not enough parts
		{"v", false},
		{"1", false},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			result := isVersionString(test.input)
			require.Equal(t, test.expected, result, "Input: %s", test.input)
		})
	}
}

func TestGetVersionOutput(t *testing.T) {
	versions := &trunkvers.LanguageVersions{
		SemVer:     "1.2.3-alpha.1",
		Python:     "1.2.3a1",
		JavaScript: "v1.2.3-alpha.1",
		DotNet:     "1.2.3-alpha.1",
		Go:         "v1.2.3-alpha.1",
	}

	tests := []struct {
		language string
		expected string
	}{
		{"generic", "1.2.3-alpha.1"},
		{"semver", "1.2.3-alpha.1"},
		{"python", "1.2.3a1"},
		{"javascript", "v1.2.3-alpha.1"},
		{"js", "v1.2.3-alpha.1"},
		{"node", "v1.2.3-alpha.1"},
		{"dotnet", "1.2.3-alpha.1"},
		{".net", "1.2.3-alpha.1"},
		{"csharp", "1.2.3-alpha.1"},
		{"go", "v1.2.3-alpha.1"},
		{"golang", "v1.2.3-alpha.1"},
		{"unknown", "1.2.3-alpha.1"}, // Should default to SemVer
	}

	for _, test := range tests {
		t.Run(test.language, func(t *testing.T) {
			result := getVersionOutput(versions, test.language)
			require.Equal(t, test.expected, result)
		})
	}
}

func TestCLIShowVersion(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		var out bytes.Buffer
		cli := &CLI{ShowVersion: true, out: &out}

		require.NoError(t, cli.Run())
		require.Equal(t, "trunkvers version dev\n", out.String())
	})

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		cli := &CLI{ShowVersion: true, JSON: true, out: &out}

		require.NoError(t, cli.Run())

		var versionInfo map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &versionInfo))
		require.Equal(t, "dev", versionInfo["version"])
		require.Equal(t, "trunkvers", versionInfo["name"])
	})
}

func TestCLIConvertVersion(t *testing.T) {
	t.Run("Python", func(t *testing.T) {
		var out bytes.Buffer
		cli := &CLI{Commitish: "1.2.3-beta.4", Language: "python", out: &out}

		require.NoError(t, cli.Run())
		require.Equal(t, "1.2.3b4", strings.TrimSpace(out.String()))
	})

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		cli := &CLI{Commitish: "v1.2.3", JSON: true, out: &out}

		require.NoError(t, cli.Run())

		var versions trunkvers.LanguageVersions
		require.NoError(t, json.Unmarshal(out.Bytes(), &versions))
		require.Equal(t, "1.2.3", versions.SemVer)
		require.Equal(t, "1.2.3", versions.Python)
		require.Equal(t, "v1.2.3", versions.JavaScript)
		require.Equal(t, "1.2.3", versions.DotNet)
		require.Equal(t, "v1.2.3", versions.Go)
	})
}

func TestCLICalculateVersionNonGitRepo(t *testing.T) {
	var out bytes.Buffer
	cli := &CLI{Repo: t.TempDir(), JSON: true, out: &out}

	require.NoError(t, cli.Run())

	var versions trunkvers.LanguageVersions
	require.NoError(t, json.Unmarshal(out.Bytes(), &versions))

	// Should get fallback versions
	require.Equal(t, "0.0.0-dev", versions.SemVer)
	require.Equal(t, "0.0.0.dev0", versions.Python)
	require.Equal(t, "v0.0.0-dev", versions.JavaScript)
	require.Equal(t, "0.0.0-dev", versions.DotNet)
	require.Equal(t, "v0.0.0-dev", versions.Go)
}

func TestCLICalculateVersion(t *testing.T) {
	t.Run("Empty repository falls back", func(t *testing.T) {
		dir := t.TempDir()
		_, err := git.PlainInit(dir, false)
		require.NoError(t, err)

		var out bytes.Buffer
		cli := &CLI{Repo: dir, out: &out}
		require.NoError(t, cli.Run())
		require.Equal(t, "0.0.0-dev\n", out.String())
	})

	t.Run("Tagged release", func(t *testing.T) {
		dir, repo, hashes := testRepo(t, "initial", "release")
		_, err := repo.CreateTag("v1.0.0", hashes[1], nil)
		require.NoError(t, err)

		var out bytes.Buffer
		cli := &CLI{Repo: dir, Language: "go", out: &out}
		require.NoError(t, cli.Run())
		require.Equal(t, "v1.0.0\n", out.String())
	})

	t.Run("Commit message bump", func(t *testing.T) {
		dir, repo, hashes := testRepo(t, "initial", "add api +semver: minor")
		_, err := repo.CreateTag("v1.0.0", hashes[0], nil)
		require.NoError(t, err)

		var out bytes.Buffer
		cli := &CLI{Repo: dir, out: &out}
		require.NoError(t, cli.Run())
		require.Equal(t, "1.1.0\n", out.String())
	})

	t.Run("Label override", func(t *testing.T) {
		dir, repo, hashes := testRepo(t, "initial", "fix +semver: patch")
		_, err := repo.CreateTag("v1.0.0", hashes[0], nil)
		require.NoError(t, err)

		label := "rc"
		var out bytes.Buffer
		cli := &CLI{Repo: dir, Label: &label, OmitCommitHash: true, out: &out}
		require.NoError(t, cli.Run())
		require.Equal(t, "1.0.1-rc.1\n", out.String())
	})

	t.Run("Configuration file in repository root", func(t *testing.T) {
		dir, repo, hashes := testRepo(t, "initial")
		_, err := repo.CreateTag("release-2.3.0", hashes[0], nil)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "trunkvers.yml"),
			[]byte("tag-prefix: release-\n"), 0o644))

		var out bytes.Buffer
		cli := &CLI{Repo: dir, out: &out}
		require.NoError(t, cli.Run())
		require.Equal(t, "2.3.0\n", out.String())
	})

	t.Run("Invalid configuration", func(t *testing.T) {
		dir, _, _ := testRepo(t, "initial")
		config := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(config, []byte("commit-message-incrementing: Sometimes\n"), 0o644))

		cli := &CLI{Repo: dir, Config: config, out: &bytes.Buffer{}}
		err := cli.Run()
		require.ErrorIs(t, err, trunkvers.ErrUnknownCommitMessageIncrementMode)
	})

	t.Run("Unknown branch", func(t *testing.T) {
		dir, _, _ := testRepo(t, "initial")

		cli := &CLI{Repo: dir, Branch: "does-not-exist", out: &bytes.Buffer{}}
		err := cli.Run()
		require.ErrorIs(t, err, trunkvers.ErrBranchNotFound)
	})
}
