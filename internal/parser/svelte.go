package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

var (
	svelteScriptOpenRe = regexp.MustCompile(`(?i)^\s*<script[^>]*>`)
	svelteStyleOpenRe  = regexp.MustCompile(`(?i)^\s*<style[^>]*>`)
	svelteScriptEndRe  = regexp.MustCompile(`(?i)</script>`)
	svelteStyleEndRe   = regexp.MustCompile(`(?i)</style>`)
)

// parseSvelte splits a component into its script, style, and template
// sections. Script sections are additionally scanned for functions so the
// component logic surfaces as its own symbols.
func parseSvelte(content string) []core.Symbol {
	lines := splitLines(content)
	var symbols []core.Symbol

	type section struct{ start, end int }
	var scripts, styles []section
	inScript, inStyle := -1, -1

	for i, line := range lines {
		switch {
		case inScript >= 0:
			if svelteScriptEndRe.MatchString(line) {
				scripts = append(scripts, section{inScript, i})
				inScript = -1
			}
		case inStyle >= 0:
			if svelteStyleEndRe.MatchString(line) {
				styles = append(styles, section{inStyle, i})
				inStyle = -1
			}
		case svelteScriptOpenRe.MatchString(line):
			if svelteScriptEndRe.MatchString(line) {
				scripts = append(scripts, section{i, i})
			} else {
				inScript = i
			}
		case svelteStyleOpenRe.MatchString(line):
			if svelteStyleEndRe.MatchString(line) {
				styles = append(styles, section{i, i})
			} else {
				inStyle = i
			}
		}
	}

	covered := make(map[int]bool)
	for _, s := range scripts {
		symbols = append(symbols, core.Symbol{
			Name:      "script",
			Kind:      core.KindSvelteScript,
			StartLine: s.start + 1,
			EndLine:   s.end + 1,
		})
		inner := parseJavaScript(strings.Join(lines[s.start+1:s.end], "\n"))
		for _, sym := range inner {
			sym.StartLine += s.start + 1
			sym.EndLine += s.start + 1
			symbols = append(symbols, sym)
		}
		for i := s.start; i <= s.end; i++ {
			covered[i] = true
		}
	}
	for _, s := range styles {
		symbols = append(symbols, core.Symbol{
			Name:      "style",
			Kind:      core.KindSvelteStyle,
			StartLine: s.start + 1,
			EndLine:   s.end + 1,
		})
		for i := s.start; i <= s.end; i++ {
			covered[i] = true
		}
	}

	// The template is everything outside script and style sections.
	tmplStart, tmplEnd := -1, -1
	for i, line := range lines {
		if covered[i] || strings.TrimSpace(line) == "" {
			continue
		}
		if tmplStart < 0 {
			tmplStart = i
		}
		tmplEnd = i
	}
	if tmplStart >= 0 {
		symbols = append(symbols, core.Symbol{
			Name:      "template",
			Kind:      core.KindSvelteTemplate,
			StartLine: tmplStart + 1,
			EndLine:   tmplEnd + 1,
		})
	}
	return symbols
}
