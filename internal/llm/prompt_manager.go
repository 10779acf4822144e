package llm

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.prompt
var promptFiles embed.FS

// PromptKey identifies one summarization or chunking task.
type PromptKey string

const (
	SymbolSummaryPrompt      PromptKey = "symbol_summary"
	FileSummaryPrompt        PromptKey = "file_summary"
	ModuleSummaryPrompt      PromptKey = "module_summary"
	RepoSummaryPrompt        PromptKey = "repo_summary"
	ChunkEmbeddedCodePrompt  PromptKey = "chunk_embedded_code"
	ChunkBusinessLogicPrompt PromptKey = "chunk_business_logic"
	ChunkAPIContractsPrompt  PromptKey = "chunk_api_contracts"
)

// PromptManager holds the embedded prompt templates, one per task key. File
// names follow '<key>.prompt'.
type PromptManager struct {
	prompts map[PromptKey]*template.Template
}

func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{prompts: make(map[PromptKey]*template.Template)}

	files, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded prompts directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".prompt") {
			continue
		}
		key := PromptKey(strings.TrimSuffix(file.Name(), ".prompt"))

		content, err := promptFiles.ReadFile("prompts/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt file %s: %w", file.Name(), err)
		}
		tmpl, err := template.New(string(key)).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %s: %w", file.Name(), err)
		}
		pm.prompts[key] = tmpl
	}

	return pm, nil
}

// Render executes the template for the given task key.
func (pm *PromptManager) Render(key PromptKey, data any) (string, error) {
	tmpl, ok := pm.prompts[key]
	if !ok {
		return "", fmt.Errorf("no prompt registered for key '%s'", key)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt '%s': %w", key, err)
	}
	return buf.String(), nil
}
