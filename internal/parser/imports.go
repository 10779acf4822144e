package parser

import (
	"regexp"
	"strings"
)

// maxImports caps the import list recorded per file.
const maxImports = 30

var importRes = map[string][]*regexp.Regexp{
	LangPython: {
		regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import`),
	},
	LangJavaScript: {
		regexp.MustCompile(`(?m)^\s*import\s+(?:[\w{},*\s]+\s+from\s+)?['"]([^'"]+)['"]`),
		regexp.MustCompile(`(?m)require\(\s*['"]([^'"]+)['"]\s*\)`),
	},
	LangTypeScript: {
		regexp.MustCompile(`(?m)^\s*import\s+(?:[\w{},*\s]+\s+from\s+)?['"]([^'"]+)['"]`),
		regexp.MustCompile(`(?m)^\s*import\s+type\s+[\w{},\s]+\s+from\s+['"]([^'"]+)['"]`),
	},
	LangSvelte: {
		regexp.MustCompile(`(?m)^\s*import\s+(?:[\w{},*\s]+\s+from\s+)?['"]([^'"]+)['"]`),
	},
	LangGo: {
		regexp.MustCompile(`(?m)^\s*(?:import\s+)?(?:\w+\s+)?"([^"]+)"`),
	},
}

// ExtractImports pulls the import strings for a language, deduplicated in
// first-seen order and capped at maxImports.
func ExtractImports(content, lang string) []string {
	res, ok := importRes[lang]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var imports []string
	for _, re := range res {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			imp := strings.TrimSpace(m[1])
			if imp == "" || seen[imp] {
				continue
			}
			seen[imp] = true
			imports = append(imports, imp)
			if len(imports) >= maxImports {
				return imports
			}
		}
	}
	return imports
}
