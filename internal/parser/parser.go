// Package parser maps source files to ordered symbol lists. Each supported
// language has its own line-oriented parser selected through a dispatch
// table built at startup; everything else goes through a regex fallback that
// still extracts correctly-named functions and classes with approximate line
// ranges.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

// Language identifiers used across the pipeline.
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangSvelte     = "svelte"
	LangHTML       = "html"
	LangCSS        = "css"
	LangSQL        = "sql"
	LangVue        = "vue"
	LangGo         = "go"
	LangUnknown    = "unknown"
)

var extToLanguage = map[string]string{
	".py":     LangPython,
	".js":     LangJavaScript,
	".jsx":    LangJavaScript,
	".mjs":    LangJavaScript,
	".ts":     LangTypeScript,
	".tsx":    LangTypeScript,
	".svelte": LangSvelte,
	".html":   LangHTML,
	".htm":    LangHTML,
	".css":    LangCSS,
	".sql":    LangSQL,
	".vue":    LangVue,
	".go":     LangGo,
}

// DetectLanguage maps a file path to a language identifier by extension.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLanguage[ext]; ok {
		return lang
	}
	return LangUnknown
}

// DocExtensions are the documentation formats handled by the chunking
// pipeline instead of the code pipeline.
var DocExtensions = map[string]string{
	".md":  core.DocFormatMarkdown,
	".rst": core.DocFormatRST,
	".txt": core.DocFormatPlaintext,
}

// IsDocFile reports whether the path belongs to the documentation pipeline.
func IsDocFile(path string) bool {
	_, ok := DocExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// languageParser parses one language's source into symbols.
type languageParser func(content string) []core.Symbol

// Registry dispatches file contents to the parser for their language.
type Registry struct {
	parsers map[string]languageParser
}

// NewRegistry builds the dispatch table for all supported languages.
func NewRegistry() *Registry {
	return &Registry{
		parsers: map[string]languageParser{
			LangPython:     parsePython,
			LangJavaScript: parseJavaScript,
			LangTypeScript: parseJavaScript,
			LangSvelte:     parseSvelte,
			LangHTML:       parseHTML,
			LangCSS:        parseCSS,
		},
	}
}

// Parse returns the ordered symbol list for a file. Unsupported languages go
// through the regex fallback.
func (r *Registry) Parse(content, path string) []core.Symbol {
	lang := DetectLanguage(path)
	if p, ok := r.parsers[lang]; ok {
		return p(content)
	}
	return parseFallback(content)
}

// splitLines preserves line positions without the trailing newline artifact.
func splitLines(content string) []string {
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

// indentOf counts leading spaces, expanding tabs to four.
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
