package core

// SymbolKind classifies a parsed symbol. Structural kinds come from the
// per-language parsers; anything else originates from the LLM chunker and is
// treated as semantic.
type SymbolKind string

const (
	KindFunction       SymbolKind = "function"
	KindClass          SymbolKind = "class"
	KindMethod         SymbolKind = "method"
	KindArrowFunction  SymbolKind = "arrow_function"
	KindVariable       SymbolKind = "variable"
	KindSvelteScript   SymbolKind = "svelte_script"
	KindSvelteStyle    SymbolKind = "svelte_style"
	KindSvelteTemplate SymbolKind = "svelte_template"
	KindSemantic       SymbolKind = "semantic"
)

// structuralKinds is the closed set produced by structural parsing. Kinds
// outside this set were added by the LLM chunker.
var structuralKinds = map[SymbolKind]struct{}{
	KindFunction:       {},
	KindClass:          {},
	KindMethod:         {},
	KindArrowFunction:  {},
	KindVariable:       {},
	KindSvelteScript:   {},
	KindSvelteStyle:    {},
	KindSvelteTemplate: {},
}

// IsStructural reports whether the kind comes from structural parsing rather
// than the LLM chunker.
func (k SymbolKind) IsStructural() bool {
	_, ok := structuralKinds[k]
	return ok
}

// MethodRef records a method discovered inside a class body.
type MethodRef struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Symbol is one parsed region of a source file. Line numbers are 1-indexed
// and inclusive.
type Symbol struct {
	Name      string      `json:"name"`
	Kind      SymbolKind  `json:"kind"`
	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Docstring string      `json:"docstring,omitempty"`
	Methods   []MethodRef `json:"methods,omitempty"`
	Inherits  []string    `json:"inherits,omitempty"`
}

// LineCount returns the number of source lines the symbol spans.
func (s Symbol) LineCount() int {
	return s.EndLine - s.StartLine + 1
}

// minSignificantLines is the threshold above which a symbol becomes its own
// SymbolIndex document.
const minSignificantLines = 5

// Significant reports whether the symbol is large enough to become its own
// document in the hierarchy.
func (s Symbol) Significant() bool {
	return s.LineCount() >= minSignificantLines
}
