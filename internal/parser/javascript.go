package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

var (
	jsFunctionRe = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)
	jsClassRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.]*))?`)
	jsArrowRe    = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`)
	jsMethodRe   = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+|readonly\s+)*(?:async\s+)?\*?\s*([A-Za-z_$][\w$]*)\s*\([^;]*\)\s*(?::[^{;]+)?\{`)
	jsKeywords   = map[string]bool{
		"if": true, "for": true, "while": true, "switch": true, "catch": true,
		"return": true, "function": true, "constructor": false, "with": true,
	}
)

// parseJavaScript handles both JavaScript and TypeScript. It is a
// line-oriented scan with brace balancing for end lines, which is close
// enough for summary-sized chunks.
func parseJavaScript(content string) []core.Symbol {
	lines := splitLines(content)
	var symbols []core.Symbol

	i := 0
	for i < len(lines) {
		line := lines[i]

		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			end := braceEnd(lines, i)
			sym := core.Symbol{
				Name:      m[1],
				Kind:      core.KindClass,
				StartLine: i + 1,
				EndLine:   end + 1,
				Docstring: jsDocAbove(lines, i),
			}
			if m[2] != "" {
				sym.Inherits = []string{m[2]}
			}
			methods := parseJSMethods(lines, i+1, end, m[1])
			for _, meth := range methods {
				sym.Methods = append(sym.Methods, core.MethodRef{
					Name:      strings.TrimPrefix(meth.Name, m[1]+"."),
					StartLine: meth.StartLine,
					EndLine:   meth.EndLine,
				})
			}
			symbols = append(symbols, sym)
			symbols = append(symbols, methods...)
			i = end + 1
			continue
		}

		if m := jsFunctionRe.FindStringSubmatch(line); m != nil {
			end := braceEnd(lines, i)
			symbols = append(symbols, core.Symbol{
				Name:      m[1],
				Kind:      core.KindFunction,
				StartLine: i + 1,
				EndLine:   end + 1,
				Docstring: jsDocAbove(lines, i),
			})
			i = end + 1
			continue
		}

		if m := jsArrowRe.FindStringSubmatch(line); m != nil {
			end := braceEnd(lines, i)
			symbols = append(symbols, core.Symbol{
				Name:      m[1],
				Kind:      core.KindArrowFunction,
				StartLine: i + 1,
				EndLine:   end + 1,
				Docstring: jsDocAbove(lines, i),
			})
			i = end + 1
			continue
		}

		i++
	}
	return symbols
}

// parseJSMethods extracts Class.method symbols between the class braces.
func parseJSMethods(lines []string, from, to int, className string) []core.Symbol {
	var methods []core.Symbol
	i := from
	for i <= to && i < len(lines) {
		if m := jsMethodRe.FindStringSubmatch(lines[i]); m != nil && !jsKeywords[m[1]] {
			end := braceEnd(lines, i)
			if end > to {
				end = to
			}
			methods = append(methods, core.Symbol{
				Name:      className + "." + m[1],
				Kind:      core.KindMethod,
				StartLine: i + 1,
				EndLine:   end + 1,
				Docstring: jsDocAbove(lines, i),
			})
			i = end + 1
			continue
		}
		i++
	}
	return methods
}

// braceEnd returns the 0-based index of the line where the brace opened on
// or after startIdx balances out. Declarations without a body end on their
// own line.
func braceEnd(lines []string, startIdx int) int {
	depth := 0
	opened := false
	for i := startIdx; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth <= 0 {
					return i
				}
			}
		}
		if !opened && i > startIdx+2 {
			return startIdx
		}
	}
	if !opened {
		return startIdx
	}
	return len(lines) - 1
}

// jsDocAbove collects a /** ... */ block ending directly above the symbol.
func jsDocAbove(lines []string, idx int) string {
	end := idx - 1
	for end >= 0 && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	if end < 0 || !strings.HasSuffix(strings.TrimSpace(lines[end]), "*/") {
		return ""
	}
	var block []string
	for i := end; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		block = append([]string{trimmed}, block...)
		if strings.HasPrefix(trimmed, "/*") {
			break
		}
		if i == 0 {
			return ""
		}
	}
	var parts []string
	for _, l := range block {
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimPrefix(l, "/*")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(strings.TrimSpace(l), "*")
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "\n")
}
