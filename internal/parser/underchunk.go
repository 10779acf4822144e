package parser

import (
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
)

// Underchunk reasons recorded on quality metadata for audit.
const (
	ReasonLargeFileSingleChunk = "large_file_single_chunk"
	ReasonHighDensity          = "high_density"
	ReasonLongDocstringOrSQL   = "long_docstring_or_sql"
	ReasonEmbeddedSQL          = "embedded_sql"
	ReasonSQLExecutionPattern  = "sql_execution_pattern"
	ReasonHeavyStringFmt       = "heavy_string_formatting"
	ReasonTemplateLiterals     = "template_literals"
	ReasonEmbeddedHTML         = "embedded_html"
	ReasonEmbeddedGraphQL      = "embedded_graphql"
	ReasonUnsupportedLanguage  = "unsupported_language_minimal_chunks"
	ReasonImportantFile        = "important_file_minimal_chunks"
)

var (
	longTripleQuoteRe = regexp.MustCompile(`(?s)("""|'''|` + "```" + `).{200,}?("""|'''|` + "```" + `)`)
	embeddedSQLRe     = regexp.MustCompile(`(?is)\b(SELECT\s+.+?\s+FROM\b|INSERT\s+INTO\b|UPDATE\s+\w+\s+SET\b|DELETE\s+FROM\b|CREATE\s+TABLE\b)`)
	sqlExecRe         = regexp.MustCompile(`\.execute\(|\.query\(|cursor\.|rawsql|text\(`)
	pyStringFmtRe     = regexp.MustCompile(`\.format\(|%\s\(|\bf"|\bf'`)
	templateLiteralRe = regexp.MustCompile("`[^`]*\\$\\{[^`]*`")
	embeddedHTMLRe    = regexp.MustCompile(`(?s)<(div|table|form|section|article|body)\b.{100,}?</`)
	embeddedGraphQLRe = regexp.MustCompile(`(?m)^\s*(mutation|query)\s*[{\s\w(]`)
	importantPathRe   = regexp.MustCompile(`(?i)(service|handler|controller|manager|helper|util|api|view)`)
)

var minimalChunkLangs = map[string]bool{
	LangSQL:     true,
	LangSvelte:  true,
	LangVue:     true,
	LangUnknown: true,
}

// DetectUnderchunked decides whether structural parsing likely missed
// semantic units in the file. The first matching reason wins and is
// recorded verbatim on the document's quality metadata.
func DetectUnderchunked(path, content, lang string, symbols []core.Symbol) (bool, string) {
	lineCount := len(splitLines(content))
	symCount := len(symbols)

	if len(content) > 5000 && symCount < 2 {
		return true, ReasonLargeFileSingleChunk
	}
	if symCount > 0 && lineCount/symCount > 100 {
		return true, ReasonHighDensity
	}
	if longTripleQuoteRe.MatchString(content) {
		return true, ReasonLongDocstringOrSQL
	}
	if embeddedSQLRe.MatchString(content) {
		return true, ReasonEmbeddedSQL
	}
	if lang == LangPython && sqlExecRe.MatchString(content) {
		return true, ReasonSQLExecutionPattern
	}
	if lang == LangPython && len(pyStringFmtRe.FindAllString(content, -1)) > 5 {
		return true, ReasonHeavyStringFmt
	}
	if (lang == LangJavaScript || lang == LangTypeScript) &&
		len(templateLiteralRe.FindAllString(content, -1)) > 3 {
		return true, ReasonTemplateLiterals
	}
	if embeddedHTMLRe.MatchString(content) && lang != LangHTML && lang != LangSvelte {
		return true, ReasonEmbeddedHTML
	}
	if embeddedGraphQLRe.MatchString(content) {
		return true, ReasonEmbeddedGraphQL
	}
	if minimalChunkLangs[lang] && symCount <= 2 {
		return true, ReasonUnsupportedLanguage
	}
	if importantPathRe.MatchString(path) && symCount <= 2 {
		return true, ReasonImportantFile
	}
	return false, ""
}

// CleanDocstring normalizes a docstring for inclusion in fallback summaries.
func CleanDocstring(doc string, limit int) string {
	doc = strings.TrimSpace(doc)
	doc = strings.Trim(doc, `"'`)
	doc = strings.Join(strings.Fields(doc), " ")
	if limit > 0 && len(doc) > limit {
		doc = doc[:limit]
	}
	return doc
}
