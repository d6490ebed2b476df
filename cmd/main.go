package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/jaxxstorm/trunkvers"
	"go.uber.org/zap"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	Commitish      string  `arg:"" optional:"" help:"Git commitish to analyze or version string to convert (default: HEAD)"`
	Language       string  `short:"l" default:"generic" enum:"generic,semver,python,javascript,js,node,dotnet,csharp,go,golang" help:"Output format"`
	Repo           string  `short:"r" help:"Repository path (default: current directory)"`
	Branch         string  `short:"b" help:"Branch the commit is built from (default: the checked out branch)"`
	Config         string  `short:"c" type:"path" help:"Configuration file (default: trunkvers.yml in the repository root)"`
	Label          *string `help:"Pre-release label override; an empty label builds a stable version"`
	OmitCommitHash bool    `short:"o" help:"Omit commit hash from version"`
	CheckDirty     bool    `help:"Mark versions built from a modified worktree"`
	JSON           bool    `short:"j" help:"Output as JSON"`
	LogLevel       string  `default:"none" enum:"debug,info,warn,error,none" help:"Log level of traversal diagnostics written to stderr"`
	ShowVersion    bool    `help:"Show version information" name:"version"`

	out io.Writer
}

func main() {
	var cli CLI

	kong.Parse(&cli,
		kong.Name("trunkvers"),
		kong.Description("Calculate trunk-based semantic versions from Git history or convert version strings"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *CLI) Run() error {
	if c.out == nil {
		c.out = os.Stdout
	}

	// Handle version flag
	if c.ShowVersion {
		return c.showVersion()
	}

	// Check if the input looks like a version string to convert
	if c.Commitish != "" && isVersionString(c.Commitish) {
		return c.convertVersion()
	}

	// Otherwise, calculate from git repository
	return c.calculateVersion()
}

func (c *CLI) showVersion() error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "trunkvers",
	}

	if c.JSON {
		return json.NewEncoder(c.out).Encode(versionInfo)
	}

	fmt.Fprintf(c.out, "trunkvers version %s\n", Version)
	return nil
}

func (c *CLI) convertVersion() error {
	versions, err := trunkvers.CalculateFromString(c.Commitish)
	if err != nil {
		return fmt.Errorf("converting version: %w", err)
	}
	return c.print(versions)
}

func (c *CLI) calculateVersion() error {
	repoPath := c.Repo
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
	}

	// Try to open repository, but handle gracefully if it's not a git repo
	repo, err := trunkvers.OpenRepository(repoPath)
	if err != nil {
		return c.print(trunkvers.GenerateFallbackVersion())
	}

	cfg, err := c.loadConfiguration(repo, repoPath)
	if err != nil {
		return err
	}

	logger, err := trunkvers.NewLogger(c.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts := trunkvers.Options{
		Repository:     repo,
		Commitish:      plumbing.Revision(c.Commitish),
		Branch:         c.Branch,
		Configuration:  cfg,
		Label:          c.Label,
		OmitCommitHash: c.OmitCommitHash,
		CheckDirty:     c.CheckDirty,
		Logger:         logger,
	}

	versions, err := trunkvers.Calculate(opts)
	if errors.Is(err, plumbing.ErrReferenceNotFound) && c.Commitish == "" && c.Branch == "" {
		// No commits yet
		logger.Debug("no history, using fallback version", zap.Error(err))
		versions, err = trunkvers.GenerateFallbackVersion(), nil
	}
	if err != nil {
		return err
	}
	return c.print(versions)
}

// loadConfiguration reads --config, or the configuration file in the worktree root.
func (c *CLI) loadConfiguration(repo *git.Repository, repoPath string) (*trunkvers.Configuration, error) {
	if c.Config != "" {
		return trunkvers.LoadConfiguration(c.Config)
	}

	root := repoPath
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}
	return trunkvers.FindConfiguration(root)
}

func (c *CLI) print(versions *trunkvers.LanguageVersions) error {
	if c.JSON {
		return json.NewEncoder(c.out).Encode(versions)
	}

	output := getVersionOutput(versions, c.Language)
	fmt.Fprintln(c.out, output)
	return nil
}

// isVersionString checks if the input looks like a version string rather than a git reference
func isVersionString(input string) bool {
	// Simple heuristic: if it contains dots and starts with a number or 'v', treat as version
	if strings.Contains(input, ".") {
		trimmed := strings.TrimPrefix(input, "v")
		if len(trimmed) > 0 && (trimmed[0] >= '0' && trimmed[0] <= '9') {
			// Check if it has at least 2 dots (x.y.z format)
			parts := strings.Split(trimmed, ".")
			return len(parts) >= 3
		}
	}
	return false
}

func getVersionOutput(versions *trunkvers.LanguageVersions, language string) string {
	switch strings.ToLower(language) {
	case "generic", "semver":
		return versions.SemVer
	case "python":
		return versions.Python
	case "javascript", "js", "node":
		return versions.JavaScript
	case "dotnet", ".net", "csharp":
		return versions.DotNet
	case "go", "golang":
		return versions.Go
	default:
		return versions.SemVer
	}
}
