package trunkvers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// CommitMessageIncrementMode controls whether commit messages may force increments.
type CommitMessageIncrementMode string

const (
	CommitMessageIncrementEnabled          CommitMessageIncrementMode = "Enabled"
	CommitMessageIncrementDisabled         CommitMessageIncrementMode = "Disabled"
	CommitMessageIncrementMergeMessageOnly CommitMessageIncrementMode = "MergeMessageOnly"
)

// IncrementStrategy is the configured increment of a branch.
type IncrementStrategy string

const (
	IncrementNone    IncrementStrategy = "None"
	IncrementPatch   IncrementStrategy = "Patch"
	IncrementMinor   IncrementStrategy = "Minor"
	IncrementMajor   IncrementStrategy = "Major"
	IncrementInherit IncrementStrategy = "Inherit"
)

func (s IncrementStrategy) field(inherited VersionField) (VersionField, error) {
	switch s {
	case IncrementNone:
		return None, nil
	case IncrementPatch:
		return Patch, nil
	case IncrementMinor:
		return Minor, nil
	case IncrementMajor:
		return Major, nil
	case IncrementInherit, "":
		return inherited, nil
	default:
		return None, fmt.Errorf("unknown increment strategy %q", string(s))
	}
}

// DefaultConfigurationFiles are looked up in the repository root, in order.
var DefaultConfigurationFiles = []string{"trunkvers.yml", "trunkvers.yaml", ".trunkvers.yml", ".trunkvers.yaml"}

const unknownBranchConfiguration = "unknown"

// IgnoreConfiguration excludes commits from versioning.
type IgnoreConfiguration struct {
	Shas          []string   `yaml:"sha,omitempty"`
	CommitsBefore *time.Time `yaml:"commits-before,omitempty"`
}

// Excludes reports whether c must be left out of versioning.
func (i IgnoreConfiguration) Excludes(c *object.Commit) bool {
	if i.CommitsBefore != nil && c.Committer.When.Before(*i.CommitsBefore) {
		return true
	}
	hash := c.Hash.String()
	for _, sha := range i.Shas {
		if sha != "" && strings.HasPrefix(hash, strings.ToLower(sha)) {
			return true
		}
	}
	return false
}

// BranchConfiguration is the policy of the branches matching Regex.
type BranchConfiguration struct {
	Regex                     string                     `yaml:"regex,omitempty"`
	Label                     *string                    `yaml:"label,omitempty"`
	Increment                 IncrementStrategy          `yaml:"increment,omitempty"`
	IsMainBranch              *bool                      `yaml:"is-main-branch,omitempty"`
	IsReleaseBranch           *bool                      `yaml:"is-release-branch,omitempty"`
	TrackMergeMessage         *bool                      `yaml:"track-merge-message,omitempty"`
	CommitMessageIncrementing CommitMessageIncrementMode `yaml:"commit-message-incrementing,omitempty"`
}

func (b *BranchConfiguration) merge(o *BranchConfiguration) {
	if o.Regex != "" {
		b.Regex = o.Regex
	}
	if o.Label != nil {
		b.Label = o.Label
	}
	if o.Increment != "" {
		b.Increment = o.Increment
	}
	if o.IsMainBranch != nil {
		b.IsMainBranch = o.IsMainBranch
	}
	if o.IsReleaseBranch != nil {
		b.IsReleaseBranch = o.IsReleaseBranch
	}
	if o.TrackMergeMessage != nil {
		b.TrackMergeMessage = o.TrackMergeMessage
	}
	if o.CommitMessageIncrementing != "" {
		b.CommitMessageIncrementing = o.CommitMessageIncrementing
	}
}

// Configuration is the repository wide versioning policy.
type Configuration struct {
	TagPrefix                 string                          `yaml:"tag-prefix,omitempty"`
	Increment                 IncrementStrategy               `yaml:"increment,omitempty"`
	CommitMessageIncrementing CommitMessageIncrementMode      `yaml:"commit-message-incrementing,omitempty"`
	MajorVersionBumpMessage   string                          `yaml:"major-version-bump-message,omitempty"`
	MinorVersionBumpMessage   string                          `yaml:"minor-version-bump-message,omitempty"`
	PatchVersionBumpMessage   string                          `yaml:"patch-version-bump-message,omitempty"`
	NoBumpMessage             string                          `yaml:"no-bump-message,omitempty"`
	MergeMessageFormats       map[string]string               `yaml:"merge-message-formats,omitempty"`
	Ignore                    IgnoreConfiguration             `yaml:"ignore,omitempty"`
	Branches                  map[string]*BranchConfiguration `yaml:"branches,omitempty"`

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

// DefaultConfiguration returns the built-in trunk-based policy.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		TagPrefix:                 "[vV]?",
		Increment:                 IncrementPatch,
		CommitMessageIncrementing: CommitMessageIncrementEnabled,
		MajorVersionBumpMessage:   `\+semver:\s?(breaking|major)`,
		MinorVersionBumpMessage:   `\+semver:\s?(feature|minor)`,
		PatchVersionBumpMessage:   `\+semver:\s?(fix|patch)`,
		NoBumpMessage:             `\+semver:\s?(none|skip)`,
		MergeMessageFormats:       map[string]string{},
		Branches: map[string]*BranchConfiguration{
			"main": {
				Regex:             `^master$|^main$`,
				Label:             stringPtr(""),
				Increment:         IncrementPatch,
				IsMainBranch:      boolPtr(true),
				TrackMergeMessage: boolPtr(true),
			},
			"develop": {
				Regex:             `^dev(elop)?(ment)?$`,
				Label:             stringPtr("alpha"),
				Increment:         IncrementMinor,
				TrackMergeMessage: boolPtr(true),
			},
			"release": {
				Regex:             `^releases?[/-](?P<BranchName>.+)`,
				Label:             stringPtr("beta"),
				Increment:         IncrementMinor,
				IsReleaseBranch:   boolPtr(true),
				TrackMergeMessage: boolPtr(true),
			},
			"feature": {
				Regex:             `^features?[/-](?P<BranchName>.+)`,
				Label:             stringPtr("{BranchName}"),
				Increment:         IncrementMinor,
				TrackMergeMessage: boolPtr(true),
			},
			"hotfix": {
				Regex:             `^hotfix(es)?[/-](?P<BranchName>.+)`,
				Label:             stringPtr("beta"),
				Increment:         IncrementPatch,
				TrackMergeMessage: boolPtr(true),
			},
			"pull-request": {
				Regex:             `^(pull-requests|pull|pr)[/-](?P<Number>\d*)`,
				Label:             stringPtr("PullRequest{Number}"),
				Increment:         IncrementInherit,
				TrackMergeMessage: boolPtr(true),
			},
			"support": {
				Regex:             `^support[/-](?P<BranchName>.+)`,
				Label:             stringPtr(""),
				Increment:         IncrementPatch,
				IsMainBranch:      boolPtr(true),
				TrackMergeMessage: boolPtr(true),
			},
			unknownBranchConfiguration: {
				Regex:             `(?P<BranchName>.+)`,
				Label:             stringPtr("{BranchName}"),
				Increment:         IncrementInherit,
				TrackMergeMessage: boolPtr(true),
			},
		},
	}
}

// ParseConfiguration reads YAML and merges it over DefaultConfiguration.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var overlay Configuration
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg := DefaultConfiguration()
	cfg.merge(&overlay)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration file at path.
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration %q: %w", path, err)
	}
	return ParseConfiguration(data)
}

// FindConfiguration loads the first of DefaultConfigurationFiles present in dir, or
// returns the default configuration when there is none.
func FindConfiguration(dir string) (*Configuration, error) {
	for _, name := range DefaultConfigurationFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking configuration %q: %w", path, err)
		}
		return LoadConfiguration(path)
	}
	return DefaultConfiguration(), nil
}

func (c *Configuration) merge(o *Configuration) {
	if o.TagPrefix != "" {
		c.TagPrefix = o.TagPrefix
	}
	if o.Increment != "" {
		c.Increment = o.Increment
	}
	if o.CommitMessageIncrementing != "" {
		c.CommitMessageIncrementing = o.CommitMessageIncrementing
	}
	if o.MajorVersionBumpMessage != "" {
		c.MajorVersionBumpMessage = o.MajorVersionBumpMessage
	}
	if o.MinorVersionBumpMessage != "" {
		c.MinorVersionBumpMessage = o.MinorVersionBumpMessage
	}
	if o.PatchVersionBumpMessage != "" {
		c.PatchVersionBumpMessage = o.PatchVersionBumpMessage
	}
	if o.NoBumpMessage != "" {
		c.NoBumpMessage = o.NoBumpMessage
	}
	for name, format := range o.MergeMessageFormats {
		if c.MergeMessageFormats == nil {
			c.MergeMessageFormats = map[string]string{}
		}
		c.MergeMessageFormats[name] = format
	}
	if len(o.Ignore.Shas) > 0 {
		c.Ignore.Shas = append(c.Ignore.Shas, o.Ignore.Shas...)
	}
	if o.Ignore.CommitsBefore != nil {
		c.Ignore.CommitsBefore = o.Ignore.CommitsBefore
	}
	for name, branch := range o.Branches {
		if branch == nil {
			continue
		}
		if existing, ok := c.Branches[name]; ok {
			existing.merge(branch)
			continue
		}
		fresh := &BranchConfiguration{}
		fresh.merge(branch)
		c.Branches[name] = fresh
	}
}

func validMode(m CommitMessageIncrementMode) bool {
	switch m {
	case CommitMessageIncrementEnabled, CommitMessageIncrementDisabled, CommitMessageIncrementMergeMessageOnly:
		return true
	}
	return false
}

// Validate reports every problem of the configuration at once.
func (c *Configuration) Validate() error {
	var errs error

	patterns := map[string]string{
		"tag-prefix":                 c.TagPrefix,
		"major-version-bump-message": c.MajorVersionBumpMessage,
		"minor-version-bump-message": c.MinorVersionBumpMessage,
		"patch-version-bump-message": c.PatchVersionBumpMessage,
		"no-bump-message":            c.NoBumpMessage,
	}
	for name, format := range c.MergeMessageFormats {
		patterns["merge-message-formats."+name] = format
	}
	for name, branch := range c.Branches {
		patterns["branches."+name+".regex"] = branch.Regex
		if branch.CommitMessageIncrementing != "" && !validMode(branch.CommitMessageIncrementing) {
			errs = multierr.Append(errs, fmt.Errorf("branches.%s: %w: %q",
				name, ErrUnknownCommitMessageIncrementMode, branch.CommitMessageIncrementing))
		}
		if _, err := branch.Increment.field(None); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("branches.%s: %w", name, err))
		}
	}
	for name, pattern := range patterns {
		if _, err := c.regexp(pattern); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if !validMode(c.CommitMessageIncrementing) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %q",
			ErrUnknownCommitMessageIncrementMode, c.CommitMessageIncrementing))
	}
	if c.Increment == IncrementInherit {
		errs = multierr.Append(errs, errors.New("increment: the global increment cannot be Inherit"))
	} else if _, err := c.Increment.field(None); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("increment: %w", err))
	}
	return errs
}

func (c *Configuration) regexp(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if c.compiled == nil {
		c.compiled = map[string]*regexp.Regexp{}
	}
	c.compiled[pattern] = re
	return re, nil
}

// branchNames lists configured branches in match order: by name, the fallback last.
func (c *Configuration) branchNames() []string {
	names := make([]string, 0, len(c.Branches))
	for name := range c.Branches {
		if name != unknownBranchConfiguration {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := c.Branches[unknownBranchConfiguration]; ok {
		names = append(names, unknownBranchConfiguration)
	}
	return names
}

// EffectiveConfiguration is the resolved policy in force for one branch.
type EffectiveConfiguration struct {
	Name                      string
	Regex                     *regexp.Regexp
	Label                     *string
	Increment                 VersionField
	IsMainBranch              bool
	IsReleaseBranch           bool
	TrackMergeMessage         bool
	CommitMessageIncrementing CommitMessageIncrementMode
	Ignore                    IgnoreConfiguration
}

// BranchConfiguration resolves the effective configuration of branch. Branches no
// configured regex matches get a non-main configuration labelled after the branch.
func (c *Configuration) BranchConfiguration(branch string) *EffectiveConfiguration {
	inherited, err := c.Increment.field(Patch)
	if err != nil {
		inherited = Patch
	}

	eff := &EffectiveConfiguration{
		Name:                      unknownBranchConfiguration,
		Label:                     stringPtr("{BranchName}"),
		Increment:                 inherited,
		CommitMessageIncrementing: c.CommitMessageIncrementing,
		Ignore:                    c.Ignore,
	}

	for _, name := range c.branchNames() {
		bc := c.Branches[name]
		re, err := c.regexp(bc.Regex)
		if err != nil || !re.MatchString(branch) {
			continue
		}

		eff.Name = name
		eff.Regex = re
		eff.Label = bc.Label
		if field, err := bc.Increment.field(inherited); err == nil {
			eff.Increment = field
		}
		eff.IsMainBranch = bc.IsMainBranch != nil && *bc.IsMainBranch
		eff.IsReleaseBranch = bc.IsReleaseBranch != nil && *bc.IsReleaseBranch
		eff.TrackMergeMessage = bc.TrackMergeMessage != nil && *bc.TrackMergeMessage
		if bc.CommitMessageIncrementing != "" {
			eff.CommitMessageIncrementing = bc.CommitMessageIncrementing
		}
		break
	}
	return eff
}

var labelSanitizer = regexp.MustCompile(`[^0-9A-Za-z-]+`)

func sanitizeLabel(s string) string {
	return strings.Trim(labelSanitizer.ReplaceAllString(s, "-"), "-")
}

// LabelFor returns the pre-release label for versions built from branch. A non-nil
// override wins; a nil result means the branch has no label policy.
func (e *EffectiveConfiguration) LabelFor(branch string, override *string) *string {
	if override != nil {
		return override
	}
	if e.Label == nil {
		return nil
	}

	label := *e.Label
	if e.Regex != nil {
		if match := e.Regex.FindStringSubmatch(branch); match != nil {
			for i, name := range e.Regex.SubexpNames() {
				if name != "" {
					label = strings.ReplaceAll(label, "{"+name+"}", sanitizeLabel(match[i]))
				}
			}
		}
	}
	label = strings.ReplaceAll(label, "{BranchName}", sanitizeLabel(branch))
	return &label
}
