package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

var (
	htmlIDRe    = regexp.MustCompile(`(?i)<([a-z][a-z0-9]*)\b[^>]*\bid\s*=\s*["']([^"']+)["']`)
	cssRuleRe   = regexp.MustCompile(`^\s*([^{}@\s][^{]*)\{`)
	cssAtRuleRe = regexp.MustCompile(`^\s*(@media|@supports|@keyframes)\s+([^{]+)\{`)
)

// parseHTML surfaces elements with an id attribute as named variables so
// that anchor points of a page are addressable.
func parseHTML(content string) []core.Symbol {
	lines := splitLines(content)
	var symbols []core.Symbol
	for i, line := range lines {
		for _, m := range htmlIDRe.FindAllStringSubmatch(line, -1) {
			symbols = append(symbols, core.Symbol{
				Name:      m[1] + "#" + m[2],
				Kind:      core.KindVariable,
				StartLine: i + 1,
				EndLine:   i + 1,
			})
		}
	}
	return symbols
}

// parseCSS surfaces top-level rules and at-rules with their selector as the
// symbol name.
func parseCSS(content string) []core.Symbol {
	lines := splitLines(content)
	var symbols []core.Symbol
	depth := 0
	for i, line := range lines {
		if depth == 0 {
			if m := cssAtRuleRe.FindStringSubmatch(line); m != nil {
				end := braceEnd(lines, i)
				symbols = append(symbols, core.Symbol{
					Name:      strings.TrimSpace(m[1] + " " + strings.TrimSpace(m[2])),
					Kind:      core.KindVariable,
					StartLine: i + 1,
					EndLine:   end + 1,
				})
			} else if m := cssRuleRe.FindStringSubmatch(line); m != nil {
				end := braceEnd(lines, i)
				symbols = append(symbols, core.Symbol{
					Name:      strings.TrimSpace(m[1]),
					Kind:      core.KindVariable,
					StartLine: i + 1,
					EndLine:   end + 1,
				})
			}
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
	}
	return symbols
}
