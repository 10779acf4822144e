package parser

import (
	"fmt"
	"strings"
)

const (
	// maxChunkChars is the size above which a symbol's code gets truncated.
	maxChunkChars = 6000
	headKeepChars = 4500
	tailKeepChars = 1400
)

// TruncateOversized keeps the head and tail of an oversized code chunk with
// an explicit marker for the elided middle.
func TruncateOversized(code string) string {
	if len(code) <= maxChunkChars {
		return code
	}
	elided := len(code) - headKeepChars - tailKeepChars
	return code[:headKeepChars] +
		fmt.Sprintf("\n... [truncated %d chars] ...\n", elided) +
		code[len(code)-tailKeepChars:]
}

// ContextHeader is the two-line header prepended to every code chunk used
// for embedding or summarization.
func ContextHeader(path, className string) string {
	var b strings.Builder
	b.WriteString("# Context: ")
	b.WriteString(path)
	b.WriteString("\n")
	if className != "" {
		b.WriteString("# Inside: ")
		b.WriteString(className)
		b.WriteString("\n")
	}
	return b.String()
}
