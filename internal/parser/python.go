package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

var (
	pyDefRe   = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassRe = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)\s*(?:\(([^)]*)\))?\s*:`)
)

// parsePython extracts classes, functions and methods with a line-oriented
// indentation scan. Methods are named Class.method and additionally listed
// on the owning class.
func parsePython(content string) []core.Symbol {
	lines := splitLines(content)

	type open struct {
		symIdx int
		indent int
	}
	var symbols []core.Symbol
	var stack []open

	closeTo := func(indent, endLine int) {
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			top := stack[len(stack)-1]
			if symbols[top.symIdx].EndLine == 0 {
				symbols[top.symIdx].EndLine = endLine
			}
			stack = stack[:len(stack)-1]
		}
	}

	enclosingClass := func() int {
		for i := len(stack) - 1; i >= 0; i-- {
			if symbols[stack[i].symIdx].Kind == core.KindClass {
				return stack[i].symIdx
			}
		}
		return -1
	}

	lastContent := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentOf(line)
		closeTo(indent, lastContent+1)
		lastContent = i

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			sym := core.Symbol{
				Name:      m[2],
				Kind:      core.KindClass,
				StartLine: i + 1,
				Docstring: pyDocstring(lines, i+1),
			}
			for _, base := range strings.Split(m[3], ",") {
				if base = strings.TrimSpace(base); base != "" {
					sym.Inherits = append(sym.Inherits, base)
				}
			}
			symbols = append(symbols, sym)
			stack = append(stack, open{symIdx: len(symbols) - 1, indent: indent})
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			name := m[2]
			kind := core.KindFunction
			ownerIdx := enclosingClass()
			if ownerIdx >= 0 {
				kind = core.KindMethod
				name = symbols[ownerIdx].Name + "." + name
			}
			sym := core.Symbol{
				Name:      name,
				Kind:      kind,
				StartLine: i + 1,
				Docstring: pyDocstring(lines, i+1),
			}
			symbols = append(symbols, sym)
			if ownerIdx >= 0 {
				symbols[ownerIdx].Methods = append(symbols[ownerIdx].Methods, core.MethodRef{
					Name:      m[2],
					StartLine: i + 1,
				})
			}
			stack = append(stack, open{symIdx: len(symbols) - 1, indent: indent})
		}
	}
	closeTo(0, lastContent+1)

	// Backfill method end lines on the class method lists.
	for i := range symbols {
		if symbols[i].Kind != core.KindClass {
			continue
		}
		for j := range symbols[i].Methods {
			full := symbols[i].Name + "." + symbols[i].Methods[j].Name
			for _, s := range symbols {
				if s.Kind == core.KindMethod && s.Name == full && s.StartLine == symbols[i].Methods[j].StartLine {
					symbols[i].Methods[j].EndLine = s.EndLine
				}
			}
		}
	}
	return symbols
}

// pyDocstring reads a triple-quoted docstring starting at or just after
// startIdx (0-based index of the line following the def/class header).
func pyDocstring(lines []string, startIdx int) string {
	for i := startIdx; i < len(lines) && i < startIdx+2; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		var quote string
		switch {
		case strings.HasPrefix(trimmed, `"""`):
			quote = `"""`
		case strings.HasPrefix(trimmed, "'''"):
			quote = "'''"
		default:
			return ""
		}
		body := strings.TrimPrefix(trimmed, quote)
		if idx := strings.Index(body, quote); idx >= 0 {
			return strings.TrimSpace(body[:idx])
		}
		var parts []string
		if body != "" {
			parts = append(parts, body)
		}
		for j := i + 1; j < len(lines); j++ {
			if idx := strings.Index(lines[j], quote); idx >= 0 {
				parts = append(parts, strings.TrimSpace(lines[j][:idx]))
				return strings.TrimSpace(strings.Join(parts, "\n"))
			}
			parts = append(parts, strings.TrimSpace(lines[j]))
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}
	return ""
}
