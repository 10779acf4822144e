// Package gate decides whether a changed file should propagate to its
// ancestor module and repo summaries. The decision ladder prefers cheap
// checks first and falls back to a conservative "significant" when nothing
// rules the change out.
package gate

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sevigo/code-atlas/internal/config"
)

// minorKeywords mark changes that do not warrant regenerating ancestor
// summaries, unless a significant keyword is also present.
var minorKeywords = []string{
	"fix", "typo", "comment", "format", "style", "cleanup", "lint", "whitespace", "minor",
}

var significantKeywords = []string{
	"new feature", "added", "implements", "creates", "api", "interface",
	"breaking", "refactor", "architecture", "dependency", "integration",
}

// Embedder embeds one text for cosine comparison against a stored vector.
// The embedding client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gate evaluates change significance.
type Gate struct {
	cfg      config.GateConfig
	embedder Embedder
	logger   *slog.Logger
}

func New(cfg config.GateConfig, embedder Embedder, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger.With("component", "gate"),
	}
}

// IsSignificant reports whether the change from oldSummary to newSummary
// should regenerate ancestor summaries. The returned reason is for logging
// only.
func (g *Gate) IsSignificant(ctx context.Context, oldSummary, newSummary, diffText string, oldEmbedding []float32) (bool, string) {
	if strings.TrimSpace(oldSummary) == "" {
		return true, "new_file"
	}
	if oldSummary == newSummary {
		return false, "identical_summary"
	}
	if !g.cfg.Enabled {
		return true, "gate_disabled"
	}

	if len(oldEmbedding) > 0 && g.embedder != nil {
		newEmbedding, err := g.embedder.Embed(ctx, newSummary)
		if err != nil {
			g.logger.Warn("gate embedding failed, falling back to text heuristic", "error", err)
		} else {
			sim := cosine(oldEmbedding, newEmbedding)
			switch {
			case sim > g.cfg.CosineHigh:
				return false, "embedding_similar"
			case sim < g.cfg.CosineLow:
				return true, "embedding_divergent"
			}
			// Ambiguous band, fall through to the text heuristic.
		}
	}

	ratio, delta := similarityRatio(oldSummary, newSummary)
	if ratio >= g.cfg.RatioNotSig {
		return false, "high_text_similarity"
	}

	combined := strings.ToLower(diffText + " " + delta)
	hasSignificant := containsAny(combined, significantKeywords)
	if containsAny(combined, minorKeywords) && !hasSignificant {
		return false, "minor_keywords"
	}
	if hasSignificant {
		return true, "significant_keywords"
	}
	if ratio < g.cfg.RatioSig {
		return true, "low_text_similarity"
	}
	return true, "default_conservative"
}

// similarityRatio is the sequence-matcher ratio 2*M/T where M is the number
// of matching characters and T the combined length. It also returns the
// concatenated changed text for keyword matching.
func similarityRatio(oldText, newText string) (float64, string) {
	total := len(oldText) + len(newText)
	if total == 0 {
		return 1, ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)

	matching := 0
	var delta strings.Builder
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matching += len(d.Text)
		} else {
			delta.WriteString(d.Text)
			delta.WriteString(" ")
		}
	}
	return 2 * float64(matching) / float64(total), delta.String()
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
