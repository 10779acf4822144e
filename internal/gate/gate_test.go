package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/code-atlas/internal/config"
)

func testGateConfig() config.GateConfig {
	return config.GateConfig{
		Enabled:     true,
		CosineHigh:  0.95,
		CosineLow:   0.80,
		RatioNotSig: 0.90,
		RatioSig:    0.70,
	}
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func newGate(embedder Embedder) *Gate {
	return New(testGateConfig(), embedder, slog.New(slog.DiscardHandler))
}

func TestNewFileIsSignificant(t *testing.T) {
	sig, reason := newGate(nil).IsSignificant(context.Background(), "", "new summary", "", nil)
	assert.True(t, sig)
	assert.Equal(t, "new_file", reason)
}

func TestIdenticalSummaryIsNotSignificant(t *testing.T) {
	sig, reason := newGate(nil).IsSignificant(context.Background(), "same", "same", "", nil)
	assert.False(t, sig)
	assert.Equal(t, "identical_summary", reason)
}

func TestDisabledGateIsConservative(t *testing.T) {
	g := New(config.GateConfig{Enabled: false}, nil, slog.New(slog.DiscardHandler))
	sig, reason := g.IsSignificant(context.Background(), "old", "new", "", nil)
	assert.True(t, sig)
	assert.Equal(t, "gate_disabled", reason)
}

func TestEmbeddingSimilarity(t *testing.T) {
	oldVec := []float32{1, 0}

	sig, reason := newGate(&fakeEmbedder{vec: []float32{1, 0}}).
		IsSignificant(context.Background(), "old summary", "slightly different", "", oldVec)
	assert.False(t, sig)
	assert.Equal(t, "embedding_similar", reason)

	sig, reason = newGate(&fakeEmbedder{vec: []float32{0, 1}}).
		IsSignificant(context.Background(), "old summary", "totally different", "", oldVec)
	assert.True(t, sig)
	assert.Equal(t, "embedding_divergent", reason)
}

func TestEmbeddingErrorFallsBackToText(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("backend down")}
	oldText := strings.Repeat("a", 95) + strings.Repeat("b", 5)
	newText := strings.Repeat("a", 95) + strings.Repeat("c", 5)

	sig, reason := newGate(embedder).IsSignificant(context.Background(), oldText, newText, "", []float32{1, 0})
	assert.False(t, sig)
	assert.Equal(t, "high_text_similarity", reason)
}

func TestHighRatioIsNotSignificant(t *testing.T) {
	oldText := strings.Repeat("a", 95) + strings.Repeat("b", 5)
	newText := strings.Repeat("a", 95) + strings.Repeat("c", 5)

	sig, reason := newGate(nil).IsSignificant(context.Background(), oldText, newText, "", nil)
	assert.False(t, sig)
	assert.Equal(t, "high_text_similarity", reason)
}

func TestMinorKeywordsSuppressPropagation(t *testing.T) {
	sig, reason := newGate(nil).IsSignificant(context.Background(),
		strings.Repeat("x", 40), strings.Repeat("y", 40), "fix typo in docstring", nil)
	assert.False(t, sig)
	assert.Equal(t, "minor_keywords", reason)
}

func TestSignificantKeywordsWinOverMinor(t *testing.T) {
	sig, reason := newGate(nil).IsSignificant(context.Background(),
		strings.Repeat("x", 40), strings.Repeat("y", 40), "fix typo and added new endpoint", nil)
	assert.True(t, sig)
	assert.Equal(t, "significant_keywords", reason)
}

func TestLowRatioIsSignificant(t *testing.T) {
	sig, reason := newGate(nil).IsSignificant(context.Background(),
		strings.Repeat("q", 50), strings.Repeat("z", 50), "", nil)
	assert.True(t, sig)
	assert.Equal(t, "low_text_similarity", reason)
}

func TestAmbiguousRatioDefaultsToSignificant(t *testing.T) {
	oldText := strings.Repeat("a", 80) + strings.Repeat("q", 20)
	newText := strings.Repeat("a", 80) + strings.Repeat("z", 20)

	sig, reason := newGate(nil).IsSignificant(context.Background(), oldText, newText, "", nil)
	assert.True(t, sig)
	assert.Equal(t, "default_conservative", reason)
}

func TestSimilarityRatio(t *testing.T) {
	ratio, _ := similarityRatio("abcd", "abcd")
	assert.InDelta(t, 1.0, ratio, 0.001)

	ratio, delta := similarityRatio(strings.Repeat("a", 80)+strings.Repeat("q", 20),
		strings.Repeat("a", 80)+strings.Repeat("z", 20))
	assert.InDelta(t, 0.8, ratio, 0.001)
	assert.Contains(t, delta, "q")
	assert.Contains(t, delta, "z")

	ratio, _ = similarityRatio("", "")
	assert.InDelta(t, 1.0, ratio, 0.001)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{1, 0}), 0.001)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 0.001)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
}
