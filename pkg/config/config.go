package config

import (
	"fmt"
	"strings"

	"github.com/wnu/wpypp/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatIncludes
	FeatSecondary32
	FeatImplicitStdio
	FeatCount
)

type Warning int

const (
	WarnUnknownChar Warning = iota
	WarnUnterminated
	WarnDroppedStmt
	WarnTopLevel
	WarnSkipped
	WarnOverflow
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning

	// Names the parser and code generators agree on
	StdioModule    string
	StdioAliases   []string
	PrintFunc      string
	GraphicsModule string
	EntryFunc      string

	// Modules usable in dotted calls without an #include
	ImplicitModules []string

	TargetName string
	QbeTarget  string
	WordSize   int

	LinkerArgs []string
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		StdioModule:    "pyppstdio",
		StdioAliases:   []string{"pypstdio"},
		PrintFunc:      "print",
		GraphicsModule: "graphics",
		EntryFunc:      "main",
		TargetName:     "win64",
		WordSize:       8,
	}

	features := map[Feature]Info{
		FeatComments:      {"comments", true, "Recognize '//' line and '/* */' block comments."},
		FeatIncludes:      {"includes", true, "Fold '#include <module>' lines into include directives."},
		FeatSecondary32:   {"secondary32", true, "Also build the 32-bit stack-argument artifact."},
		FeatImplicitStdio: {"implicit-stdio", true, "Treat the standard I/O module as always in scope."},
	}

	warnings := map[Warning]Info{
		WarnUnknownChar:  {"unknown-char", true, "Warn on characters the tokenizer does not recognize."},
		WarnUnterminated: {"unterminated", true, "Warn on unterminated comments, strings and character literals."},
		WarnDroppedStmt:  {"dropped-stmt", true, "Warn when an unrecognized statement is dropped from a block."},
		WarnTopLevel:     {"toplevel", true, "Warn when tokens outside any function are discarded."},
		WarnSkipped:      {"skipped", false, "Warn when a statement has no lowering for the selected target."},
		WarnOverflow:     {"overflow", true, "Warn when an integer literal does not fit the target word."},
		WarnExtra:        {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the lowering target. The host QBE target is resolved even
// when a NASM target is chosen so that --target qbe can be combined later.
func (c *Config) SetTarget(goos, goarch, target string) error {
	c.QbeTarget = libqbe.DefaultTarget(goos, goarch)

	switch target {
	case "", "win64":
		c.TargetName, c.WordSize = "win64", 8
	case "win32":
		c.TargetName, c.WordSize = "win32", 4
	case "gra64", "graphics":
		c.TargetName, c.WordSize = "gra64", 8
	case "qbe":
		c.TargetName = "qbe"
		switch c.QbeTarget {
		case "arm", "rv32":
			c.WordSize = 4
		default:
			c.WordSize = 8
		}
	default:
		return fmt.Errorf("unsupported target '%s'. Supported: 'win64', 'win32', 'gra64', 'qbe'", target)
	}
	return nil
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ModuleInScope reports whether module may be used in a dotted call before
// any #include has been seen.
func (c *Config) ModuleInScope(module string) bool {
	if c.IsStdioModule(module) && c.IsFeatureEnabled(FeatImplicitStdio) {
		return true
	}
	for _, m := range c.ImplicitModules {
		if m == module {
			return true
		}
	}
	return false
}

// IsStdioModule reports whether module names the standard I/O module,
// including the older wpy+ spelling.
func (c *Config) IsStdioModule(module string) bool {
	if module == c.StdioModule {
		return true
	}
	for _, m := range c.StdioAliases {
		if m == module {
			return true
		}
	}
	return false
}

// SetAllWarnings toggles every warning at once (-Wall / -Wno-all).
func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		c.SetWarning(i, enabled)
	}
}

// SetupFlagGroups registers -W<name>/-Wno-<name> and -F<name>/-Fno-<name>
// switches for every warning and feature. The -W/-F switches start at the
// current defaults so the help page can show them.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := info.Enabled, false
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}
	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := info.Enabled, false
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed group switches back into the config.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// ParseCLIString splits a shell-like argument string, honouring single and
// double quotes and backslash escapes.
func ParseCLIString(s string) ([]string, error) {
	var args []string
	var sb strings.Builder
	var quote rune
	inArg, escaped := false, false

	for _, r := range s {
		switch {
		case escaped:
			sb.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inArg = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				sb.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inArg = r, true
		case r == ' ' || r == '\t' || r == '\n':
			if inArg {
				args = append(args, sb.String())
				sb.Reset()
				inArg = false
			}
		default:
			sb.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash in %q", s)
	}
	if inArg {
		args = append(args, sb.String())
	}
	return args, nil
}
