// Package processor turns one source file into its persisted documents: a
// FileIndex plus one SymbolIndex per significant symbol. Summaries come from
// the LLM when it is reachable and from deterministic fallbacks when it is
// not; the quality block on every document records which path produced it.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/gitutil"
	"github.com/sevigo/code-atlas/internal/llm"
	"github.com/sevigo/code-atlas/internal/parser"
	"github.com/sevigo/code-atlas/internal/quality"
)

const (
	// minFileChars skips stubs and near-empty files.
	minFileChars = 50

	// maxSymbolSummaries caps how many symbol summaries feed the file-level
	// summarization prompt.
	maxSymbolSummaries = 10

	maxFilePreviewChars = 6000
	maxDocstringChars   = 300
	maxClassMethods     = 5
)

// Summarizer produces natural-language summaries for symbols and files.
// *llm.Client satisfies it.
type Summarizer interface {
	SummarizeSymbol(ctx context.Context, name, kind, code, path, lang string) (llm.Summary, error)
	SummarizeFile(ctx context.Context, path, preview, symbolsContext string) (llm.Summary, error)
}

// Chunker recovers semantic chunks from underchunked files. *llm.Client
// satisfies it.
type Chunker interface {
	Chunk(ctx context.Context, path, content, lang string, existingSymbols []string) []llm.SemanticChunk
}

// Processor builds the symbol and file documents for one source file.
type Processor struct {
	git        *gitutil.Client
	summarizer Summarizer
	chunker    Chunker
	tracker    *quality.Tracker
	registry   *parser.Registry
	logger     *slog.Logger
	llmEnabled bool
	now        func() time.Time
}

// Options configures a Processor.
type Options struct {
	Git        *gitutil.Client
	Summarizer Summarizer
	Chunker    Chunker
	Tracker    *quality.Tracker
	Logger     *slog.Logger
	LLMEnabled bool
}

func New(opts Options) *Processor {
	return &Processor{
		git:        opts.Git,
		summarizer: opts.Summarizer,
		chunker:    opts.Chunker,
		tracker:    opts.Tracker,
		registry:   parser.NewRegistry(),
		logger:     opts.Logger.With("component", "processor"),
		llmEnabled: opts.LLMEnabled,
		now:        time.Now,
	}
}

// ProcessFile resolves the file content at the given commit, parses it and
// builds the FileIndex plus the SymbolIndex documents for its significant
// symbols. A nil FileIndex with no error means the file was skipped.
func (p *Processor) ProcessFile(ctx context.Context, repoID, repoPath, relPath, commit string) (*core.FileIndex, []core.SymbolIndex, error) {
	content, err := p.resolveContent(ctx, repoPath, relPath, commit)
	if err != nil {
		p.tracker.RecordFileSkipped()
		p.logger.Warn("could not resolve file content, skipping", "path", relPath, "error", err)
		return nil, nil, nil
	}
	if len(strings.TrimSpace(content)) < minFileChars {
		p.tracker.RecordFileSkipped()
		p.logger.Debug("skipping near-empty file", "path", relPath)
		return nil, nil, nil
	}

	lang := parser.DetectLanguage(relPath)
	symbols := p.registry.Parse(content, relPath)
	imports := parser.ExtractImports(content, lang)
	lines := strings.Split(content, "\n")

	underchunked, reason := parser.DetectUnderchunked(relPath, content, lang, symbols)

	chunksAdded := 0
	if underchunked && p.llmEnabled && p.chunker != nil && p.tracker.LLMAvailable() {
		existing := make([]string, 0, len(symbols))
		for _, sym := range symbols {
			existing = append(existing, sym.Name)
		}
		for _, chunk := range p.chunker.Chunk(ctx, relPath, content, lang, existing) {
			symbols = append(symbols, chunk.Symbol())
			chunksAdded++
		}
	}

	fileDocID := core.FileDocID(repoID, relPath, commit)
	now := p.now().UTC()

	var symbolDocs []core.SymbolIndex
	var summaries []string
	for _, sym := range symbols {
		if !sym.Significant() {
			continue
		}
		doc := p.buildSymbolDoc(ctx, repoID, relPath, commit, lang, sym, symbols, lines, fileDocID, now)
		symbolDocs = append(symbolDocs, doc)
		if len(summaries) < maxSymbolSummaries {
			summaries = append(summaries, doc.Content)
		}
		p.tracker.RecordSymbolProcessed()
	}

	fileSummary, fileEnrichment := p.summarizeFile(ctx, relPath, lang, content, symbols, summaries, len(lines))

	childrenIDs := make([]string, 0, len(symbolDocs))
	for _, doc := range symbolDocs {
		childrenIDs = append(childrenIDs, doc.DocumentID)
	}
	fileSymbols := make([]core.FileSymbol, 0, len(symbols))
	for _, sym := range symbols {
		fileSymbols = append(fileSymbols, core.FileSymbol{
			Name:        sym.Name,
			Kind:        sym.Kind,
			StartLine:   sym.StartLine,
			EndLine:     sym.EndLine,
			Docstring:   parser.CleanDocstring(sym.Docstring, maxDocstringChars),
			Significant: sym.Significant(),
		})
	}

	file := &core.FileIndex{
		DocumentID:  fileDocID,
		RepoID:      repoID,
		FilePath:    relPath,
		CommitHash:  core.Commit12(commit),
		Language:    lang,
		Content:     fileSummary,
		LineCount:   len(lines),
		Imports:     imports,
		Symbols:     fileSymbols,
		ChildrenIDs: childrenIDs,
		ParentID:    parentModuleID(repoID, relPath, commit),
		Quality: core.Quality{
			EnrichmentLevel:  fileEnrichment,
			LLMAvailable:     p.tracker.LLMAvailable(),
			IsUnderchunked:   underchunked,
			UnderchunkReason: reason,
			LLMChunksAdded:   chunksAdded,
		},
		Version: core.NewVersion(now),
	}
	p.tracker.RecordFileProcessed()
	return file, symbolDocs, nil
}

// resolveContent reads the file at the ingestion commit via git show, falling
// back to the working tree when the object lookup fails.
func (p *Processor) resolveContent(ctx context.Context, repoPath, relPath, commit string) (string, error) {
	if commit != "" && p.git != nil {
		if content, err := p.git.ShowFile(ctx, repoPath, commit, relPath); err == nil {
			return content, nil
		}
	}
	data, err := os.ReadFile(filepath.Join(repoPath, relPath))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (p *Processor) buildSymbolDoc(ctx context.Context, repoID, relPath, commit, lang string, sym core.Symbol, all []core.Symbol, lines []string, fileDocID string, now time.Time) core.SymbolIndex {
	code := symbolCode(lines, sym)

	summary, enrichment := p.summarizeSymbol(ctx, relPath, lang, sym, code)

	header := parser.ContextHeader(relPath, enclosingClass(sym, all))
	return core.SymbolIndex{
		DocumentID: core.SymbolDocID(repoID, relPath, sym.Name, commit),
		RepoID:     repoID,
		FilePath:   relPath,
		CommitHash: core.Commit12(commit),
		Language:   lang,
		SymbolName: sym.Name,
		SymbolType: sym.Kind,
		Content:    summary,
		StartLine:  sym.StartLine,
		EndLine:    sym.EndLine,
		Docstring:  parser.CleanDocstring(sym.Docstring, maxDocstringChars),
		Methods:    sym.Methods,
		Inherits:   sym.Inherits,
		ParentID:   fileDocID,
		Quality: core.Quality{
			EnrichmentLevel: enrichment,
			LLMAvailable:    p.tracker.LLMAvailable(),
		},
		Version:    core.NewVersion(now),
		SourceCode: header + parser.TruncateOversized(code),
	}
}

func (p *Processor) summarizeSymbol(ctx context.Context, relPath, lang string, sym core.Symbol, code string) (string, core.EnrichmentLevel) {
	if p.llmEnabled && p.summarizer != nil && p.tracker.LLMAvailable() {
		summary, err := p.summarizer.SummarizeSymbol(ctx, sym.Name, string(sym.Kind), code, relPath, lang)
		if err == nil && strings.TrimSpace(summary.Text) != "" {
			return strings.TrimSpace(summary.Text), core.EnrichmentLLM
		}
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			p.logger.Warn("symbol summarization failed, using basic summary",
				"path", relPath, "symbol", sym.Name, "error", err)
		}
	}
	return basicSymbolSummary(sym, relPath), core.EnrichmentBasic
}

func (p *Processor) summarizeFile(ctx context.Context, relPath, lang, content string, symbols []core.Symbol, symbolSummaries []string, lineCount int) (string, core.EnrichmentLevel) {
	if p.llmEnabled && p.summarizer != nil && p.tracker.LLMAvailable() {
		preview := content
		if len(preview) > maxFilePreviewChars {
			preview = preview[:maxFilePreviewChars]
		}
		summary, err := p.summarizer.SummarizeFile(ctx, relPath, preview, strings.Join(symbolSummaries, "\n"))
		if err == nil && strings.TrimSpace(summary.Text) != "" {
			return strings.TrimSpace(summary.Text), core.EnrichmentLLM
		}
		if err != nil && !errors.Is(err, llm.ErrUnavailable) {
			p.logger.Warn("file summarization failed, using basic summary",
				"path", relPath, "error", err)
		}
	}
	return basicFileSummary(relPath, lang, symbols, lineCount), core.EnrichmentBasic
}

// basicSymbolSummary is the deterministic fallback when the LLM is off or
// unreachable. It always names the symbol, its kind and its location.
func basicSymbolSummary(sym core.Symbol, relPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s in %s, lines %d-%d)", sym.Name, sym.Kind, relPath, sym.StartLine, sym.EndLine)
	if doc := parser.CleanDocstring(sym.Docstring, maxDocstringChars); doc != "" {
		b.WriteString(". ")
		b.WriteString(doc)
	}
	if sym.Kind == core.KindClass && len(sym.Methods) > 0 {
		names := make([]string, 0, maxClassMethods)
		for _, m := range sym.Methods {
			names = append(names, m.Name)
			if len(names) == maxClassMethods {
				break
			}
		}
		b.WriteString(". Methods: ")
		b.WriteString(strings.Join(names, ", "))
	}
	return b.String()
}

func basicFileSummary(relPath, lang string, symbols []core.Symbol, lineCount int) string {
	var classes, functions, methods []string
	for _, sym := range symbols {
		switch sym.Kind {
		case core.KindClass:
			classes = append(classes, sym.Name)
		case core.KindMethod:
			methods = append(methods, sym.Name)
		case core.KindFunction, core.KindArrowFunction:
			functions = append(functions, sym.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s file, %d lines", relPath, lang, lineCount)
	if len(classes) > 0 {
		fmt.Fprintf(&b, ". Classes: %s", joinCapped(classes, maxClassMethods))
	}
	if len(functions) > 0 {
		fmt.Fprintf(&b, ". Functions: %s", joinCapped(functions, maxClassMethods))
	}
	if len(methods) > 0 {
		fmt.Fprintf(&b, ". Methods: %s", joinCapped(methods, maxClassMethods))
	}
	return b.String()
}

func joinCapped(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:limit], ", ") + fmt.Sprintf(" and %d more", len(names)-limit)
}

// symbolCode slices the symbol's source lines out of the file.
func symbolCode(lines []string, sym core.Symbol) string {
	start := sym.StartLine - 1
	end := sym.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

// enclosingClass finds the class whose line range contains a method symbol,
// for the context header of its embedding input.
func enclosingClass(sym core.Symbol, all []core.Symbol) string {
	if sym.Kind != core.KindMethod {
		return ""
	}
	for _, candidate := range all {
		if candidate.Kind != core.KindClass {
			continue
		}
		if candidate.StartLine <= sym.StartLine && sym.EndLine <= candidate.EndLine {
			return candidate.Name
		}
	}
	return ""
}

// parentModuleID wires the file to its lexical parent folder. Files at the
// repository root hang off the repo document directly.
func parentModuleID(repoID, relPath, commit string) string {
	dir := path.Dir(filepath.ToSlash(relPath))
	if dir == "." || dir == "/" {
		return core.RepoDocID(repoID, commit)
	}
	return core.ModuleDocID(repoID, dir, commit)
}
