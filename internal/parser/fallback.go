package parser

import (
	"regexp"

	"github.com/sevigo/code-atlas/internal/core"
)

// Fallback patterns recognize function and class declarations across common
// languages when no structural parser is registered. Line ranges are
// approximate: a declaration runs until the next declaration or end of file.
var fallbackRes = []struct {
	re   *regexp.Regexp
	kind core.SymbolKind
}{
	{regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`), core.KindFunction},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)\s*\(`), core.KindFunction},
	{regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(`), core.KindFunction},
	{regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?[A-Za-z_][\w<>\[\]]*\s+([A-Za-z_]\w*)\s*\([^;]*\)\s*\{`), core.KindFunction},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`), core.KindClass},
	{regexp.MustCompile(`^\s*(?:public\s+|final\s+)?class\s+([A-Za-z_]\w*)`), core.KindClass},
}

// parseFallback is the regex fallback used when a language has no structural
// parser. It still produces correctly-named function and class symbols.
func parseFallback(content string) []core.Symbol {
	lines := splitLines(content)
	var symbols []core.Symbol

	for i, line := range lines {
		for _, p := range fallbackRes {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if len(symbols) > 0 {
				last := &symbols[len(symbols)-1]
				if last.EndLine == 0 {
					last.EndLine = i
				}
			}
			symbols = append(symbols, core.Symbol{
				Name:      m[1],
				Kind:      p.kind,
				StartLine: i + 1,
			})
			break
		}
	}

	if len(symbols) > 0 && symbols[len(symbols)-1].EndLine == 0 {
		symbols[len(symbols)-1].EndLine = len(lines)
	}
	return symbols
}
