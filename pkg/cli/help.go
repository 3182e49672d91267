package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"
)

const indentUnit = 4

func indent(level int) string { return strings.Repeat(" ", indentUnit*level) }

// layout holds the column widths shared by every line of one page.
type layout struct {
	termWidth  int
	leftWidth  int
	usageWidth int
}

func (a *App) writeUsagePage(w io.Writer) {
	var sb strings.Builder
	synopsis := a.Synopsis
	if synopsis == "" {
		synopsis = "[options] <input> ..."
	}
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, synopsis)

	optionFlags := a.optionFlags()
	if len(optionFlags) > 0 {
		lay := layout{termWidth: terminalWidth(w)}
		for _, flag := range optionFlags {
			lay.leftWidth = max(lay.leftWidth, len(formatFlagString(flag)))
			lay.usageWidth = max(lay.usageWidth, len(flag.Usage))
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, lay)
		}
	}

	fmt.Fprintf(&sb, "\nRun '%s --help' for all available options and flags.\n", a.Name)
	fmt.Fprint(w, sb.String())
}

func (a *App) writeHelpPage(w io.Writer) {
	var sb strings.Builder
	optionFlags := a.optionFlags()

	lay := layout{termWidth: terminalWidth(w), leftWidth: a.leftColumnWidth()}
	for _, flag := range optionFlags {
		lay.usageWidth = max(lay.usageWidth, len(flag.Usage))
	}
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			lay.usageWidth = max(lay.usageWidth, len(entry.Usage))
		}
	}

	sb.WriteString("\n")
	years := fmt.Sprint(time.Now().Year())
	if a.Since != 0 && a.Since < time.Now().Year() {
		years = fmt.Sprintf("%d-%s", a.Since, years)
	}
	fmt.Fprintf(&sb, "%sCopyright (c) %s: %s\n", indent(1), years, strings.Join(a.Authors, ", ")+" and contributors")
	if a.Repository != "" {
		fmt.Fprintf(&sb, "%sFor more details refer to %s\n", indent(1), a.Repository)
	}

	if a.Synopsis != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sSynopsis\n", indent(1))
		synopsis := strings.NewReplacer("[", "<", "]", ">").Replace(a.Synopsis)
		fmt.Fprintf(&sb, "%s%s %s\n", indent(2), a.Name, synopsis)
	}

	if a.Description != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sDescription\n", indent(1))
		for _, line := range wrapText(a.Description, lay.termWidth-len(indent(2))) {
			fmt.Fprintf(&sb, "%s%s\n", indent(2), line)
		}
	}

	if len(optionFlags) > 0 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%sOptions\n", indent(1))
		for _, flag := range optionFlags {
			formatFlagLine(&sb, flag, lay)
		}
	}

	groups := make([]FlagGroup, len(a.FlagSet.flagGroups))
	copy(groups, a.FlagSet.flagGroups)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	for _, group := range groups {
		formatFlagGroup(&sb, group, lay)
	}
	fmt.Fprint(w, sb.String())
}

// optionFlags returns the plain flags sorted by name, leaving out prefix
// flags and group switches.
func (a *App) optionFlags() []*Flag {
	var out []*Flag
	for _, flag := range a.FlagSet.flags {
		if _, isSpecial := a.FlagSet.specialPrefix[flag.Name]; isSpecial {
			continue
		}
		if a.isGroupFlag(flag.Name) {
			continue
		}
		out = append(out, flag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *App) isGroupFlag(flagName string) bool {
	for _, group := range a.FlagSet.flagGroups {
		for _, entry := range group.Flags {
			if flagName == entry.Prefix+entry.Name || flagName == entry.Prefix+"no-"+entry.Name {
				return true
			}
		}
	}
	return false
}

func (a *App) leftColumnWidth() int {
	width := 0
	for _, flag := range a.optionFlags() {
		width = max(width, len(formatFlagString(flag)))
	}
	for _, group := range a.FlagSet.flagGroups {
		if len(group.Flags) == 0 {
			continue
		}
		prefix := group.Flags[0].Prefix
		width = max(width, len(fmt.Sprintf("-%sno-<%s>", prefix, groupType(group))))
		for _, entry := range group.Flags {
			width = max(width, len(entry.Name))
		}
	}
	return width
}

func groupType(g FlagGroup) string {
	if g.GroupType == "" {
		return "flag"
	}
	return g.GroupType
}

func formatFlagString(flag *Flag) string {
	var sb strings.Builder
	_, isBool := flag.Value.(*boolValue)

	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s", flag.Shorthand)
		if !isBool {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		}
		sb.WriteString(", ")
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		if flag.Shorthand != "" {
			fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
		} else {
			fmt.Fprintf(&sb, "=%s", flag.ExpectedType)
		}
	}
	return sb.String()
}

// formatEntry writes one "left usage |right|" line, wrapping the usage text
// under its own column.
func formatEntry(sb *strings.Builder, lay layout, left, usage, right string) {
	lead := indent(2)
	firstWidth := max(lay.termWidth-(len(lead)+lay.leftWidth+1+2+len(right)), 10)
	lines := wrapText(usage, firstWidth)

	first := ""
	if len(lines) > 0 {
		first = lines[0]
	}
	usageWidth := min(lay.usageWidth, firstWidth)

	if right != "" {
		fmt.Fprintf(sb, "%s%-*s %-*s  %s\n", lead, lay.leftWidth, left, usageWidth, first, right)
	} else {
		fmt.Fprintf(sb, "%s%-*s %s\n", lead, lay.leftWidth, left, first)
	}

	pad := strings.Repeat(" ", lay.leftWidth+1)
	for _, line := range lines[min(1, len(lines)):] {
		fmt.Fprintf(sb, "%s%s%s\n", lead, pad, line)
	}
}

func formatFlagLine(sb *strings.Builder, flag *Flag, lay layout) {
	right := ""
	if flag.DefValue != "" && flag.DefValue != "false" && flag.DefValue != "[]" {
		if _, isBool := flag.Value.(*boolValue); !isBool {
			right = fmt.Sprintf("|%s|", flag.DefValue)
		}
	}
	formatEntry(sb, lay, formatFlagString(flag), flag.Usage, right)
}

func formatFlagGroup(sb *strings.Builder, group FlagGroup, lay layout) {
	if len(group.Flags) == 0 {
		return
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%s%s\n", indent(1), group.Name)

	prefix, kind := group.Flags[0].Prefix, groupType(group)
	fmt.Fprintf(sb, "%s%-*s Enable a specific %s\n", indent(2), lay.leftWidth, fmt.Sprintf("-%s<%s>", prefix, kind), kind)
	fmt.Fprintf(sb, "%s%-*s Disable a specific %s\n", indent(2), lay.leftWidth, fmt.Sprintf("-%sno-<%s>", prefix, kind), kind)

	if group.AvailableFlagsHeader != "" {
		fmt.Fprintf(sb, "%s%s\n", indent(1), group.AvailableFlagsHeader)
	}

	entries := make([]FlagGroupEntry, len(group.Flags))
	copy(entries, group.Flags)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	for _, entry := range entries {
		right := "|-|"
		if entry.Enabled != nil && *entry.Enabled && (entry.Disabled == nil || !*entry.Disabled) {
			right = "|x|"
		}
		formatEntry(sb, lay, entry.Name, entry.Usage, right)
	}
}

// terminalWidth returns the width of w when it is a terminal, else 80.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 80
	}
	return max(width, 20)
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+len(word)+1 > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
