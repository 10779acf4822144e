package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/parser"
)

// minChunkConfidence filters out low-confidence LLM chunk suggestions.
const minChunkConfidence = 0.7

// SemanticChunk is one LLM-discovered unit that structural parsing missed.
type SemanticChunk struct {
	Type           string   `json:"type"`
	Name           string   `json:"name"`
	Content        string   `json:"content"`
	StartLine      int      `json:"start_line"`
	EndLine        int      `json:"end_line"`
	Purpose        string   `json:"purpose"`
	RelatedSymbols []string `json:"related_symbols"`
	Tags           []string `json:"tags"`
	Confidence     float64  `json:"confidence"`
}

// Symbol converts the chunk for the regular significance and summarization
// pipeline. The purpose text travels as the docstring.
func (sc SemanticChunk) Symbol() core.Symbol {
	kind := core.SymbolKind(sc.Type)
	if sc.Type == "" {
		kind = core.KindSemantic
	}
	return core.Symbol{
		Name:      sc.Name,
		Kind:      kind,
		StartLine: sc.StartLine,
		EndLine:   sc.EndLine,
		Docstring: sc.Purpose,
	}
}

var codeLangs = map[string]bool{
	parser.LangPython:     true,
	parser.LangJavaScript: true,
	parser.LangTypeScript: true,
	parser.LangSvelte:     true,
}

// chunkPasses run in order. A nil language filter means all languages.
var chunkPasses = []struct {
	key   PromptKey
	langs map[string]bool
}{
	{ChunkEmbeddedCodePrompt, nil},
	{ChunkBusinessLogicPrompt, codeLangs},
	{ChunkAPIContractsPrompt, codeLangs},
}

// Chunk asks the model for semantic chunks missed by structural parsing. A
// failed or unparseable pass contributes nothing; the result may be empty,
// which is not an error.
func (c *Client) Chunk(ctx context.Context, path, content, lang string, existingSymbols []string) []SemanticChunk {
	if !c.tracker.LLMAvailable() {
		return nil
	}

	var chunks []SemanticChunk
	for _, pass := range chunkPasses {
		if pass.langs != nil && !pass.langs[lang] {
			continue
		}

		prompt, err := c.prompts.Render(pass.key, map[string]string{
			"Path":            path,
			"Language":        lang,
			"Content":         clamp(content, maxChunkContentChars),
			"ExistingSymbols": strings.Join(existingSymbols, ", "),
		})
		if err != nil {
			c.logger.Warn("failed to render chunk prompt", "pass", pass.key, "error", err)
			continue
		}

		resp, err := c.generate(ctx, prompt)
		if err != nil {
			c.logger.Debug("chunk pass failed", "pass", pass.key, "path", path, "error", err)
			continue
		}

		for _, chunk := range parseChunks(resp.Text) {
			if chunk.Confidence > minChunkConfidence {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseChunks accepts a raw JSON array or a fenced code block. Invalid JSON
// gets one repair attempt before giving up with an empty result.
func parseChunks(text string) []SemanticChunk {
	raw := strings.TrimSpace(text)
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}
	raw = raw[start : end+1]

	var chunks []SemanticChunk
	if err := json.Unmarshal([]byte(raw), &chunks); err == nil {
		return chunks
	}
	if err := json.Unmarshal([]byte(repairJSON(raw)), &chunks); err == nil {
		return chunks
	}
	return nil
}

var loneBackslashRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

// repairJSON doubles backslashes that do not start a valid JSON escape, the
// most common defect in model-emitted code snippets.
func repairJSON(raw string) string {
	return loneBackslashRe.ReplaceAllString(raw, `\\$1`)
}
