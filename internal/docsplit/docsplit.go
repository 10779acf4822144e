// Package docsplit chunks documentation files (.md, .rst, .txt) for
// embedding. Markdown chunks keep their heading breadcrumb so search results
// can show where in the document a hit lives.
package docsplit

import (
	"context"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sevigo/goframe/textsplitter"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/parser"
)

const (
	targetChunkChars = 4000
	chunkOverlap     = 200

	// minChunkChars drops fragments too small to be useful search results.
	minChunkChars = 100
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// Splitter turns one documentation file into DocumentChunk documents.
type Splitter struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Splitter {
	return &Splitter{logger: logger.With("component", "docsplit")}
}

// Split chunks the file content. Chunks whose trimmed content is under
// minChunkChars are dropped; chunk ids are stable for (repo, path, index).
func (s *Splitter) Split(repoID, path, commit, content string) []core.DocumentChunk {
	format, ok := parser.DocExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}

	var sections []section
	if format == core.DocFormatMarkdown {
		sections = splitMarkdown(content)
	} else {
		sections = []section{{text: content}}
	}

	var pieces []section
	for _, sec := range sections {
		for _, text := range s.splitOversized(sec.text) {
			if len(strings.TrimSpace(text)) < minChunkChars {
				continue
			}
			pieces = append(pieces, section{
				text:        text,
				title:       sec.title,
				headerPath:  sec.headerPath,
				headerLevel: sec.headerLevel,
			})
		}
	}
	if len(pieces) == 0 {
		return nil
	}

	now := time.Now().UTC()
	chunks := make([]core.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, core.DocumentChunk{
			DocumentID:   core.DocChunkID(repoID, path, i),
			RepoID:       repoID,
			FilePath:     path,
			CommitHash:   core.Commit12(commit),
			Content:      strings.TrimSpace(piece.text),
			DocFormat:    format,
			ChunkIndex:   i,
			TotalChunks:  len(pieces),
			SectionTitle: piece.title,
			HeaderPath:   piece.headerPath,
			HeaderLevel:  piece.headerLevel,
			Version:      core.NewVersion(now),
		})
	}
	return chunks
}

// splitOversized sub-splits a section that exceeds the chunk target.
func (s *Splitter) splitOversized(text string) []string {
	if len(text) <= targetChunkChars {
		return []string{text}
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(targetChunkChars),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
	parts, err := splitter.SplitText(context.Background(), text)
	if err != nil {
		s.logger.Warn("text splitter failed, keeping section whole", "error", err)
		return []string{text}
	}
	return parts
}

type section struct {
	text        string
	title       string
	headerPath  string
	headerLevel int
}

// splitMarkdown cuts the document at headings and tracks the breadcrumb of
// ancestor headings for each section.
func splitMarkdown(content string) []section {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	type heading struct {
		level int
		title string
	}
	var stack []heading
	var sections []section
	var buf []string
	current := section{}

	flush := func() {
		if len(buf) == 0 {
			return
		}
		current.text = strings.Join(buf, "\n")
		sections = append(sections, current)
		buf = nil
	}

	for _, line := range lines {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			buf = append(buf, line)
			continue
		}
		flush()

		level := len(m[1])
		title := m[2]
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading{level: level, title: title})

		crumbs := make([]string, len(stack))
		for i, h := range stack {
			crumbs[i] = h.title
		}
		current = section{
			title:       title,
			headerPath:  strings.Join(crumbs, " > "),
			headerLevel: level,
		}
		buf = append(buf, line)
	}
	flush()
	return sections
}
