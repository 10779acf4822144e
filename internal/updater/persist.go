package updater

import (
	"context"
	"fmt"

	"github.com/sevigo/goframe/schema"

	"github.com/sevigo/code-atlas/internal/core"
	"github.com/sevigo/code-atlas/internal/store"
)

// persist embeds the staged documents, upserts them into the document store
// and mirrors the summaries into the vector store. In a dry run nothing is
// written.
func (u *Updater) persist(ctx context.Context, repoID string, files []core.FileIndex, symbols []core.SymbolIndex, modules []core.ModuleSummary, repoDoc *core.RepoSummary, chunks []core.DocumentChunk) error {
	total := len(files) + len(symbols) + len(modules) + len(chunks)
	if repoDoc != nil {
		total++
	}
	if total == 0 {
		return nil
	}
	if u.opts.DryRun {
		u.log.Info("dry run, skipping writes",
			"repo", repoID,
			"files", len(files),
			"symbols", len(symbols),
			"modules", len(modules),
			"doc_chunks", len(chunks))
		return nil
	}

	u.embedAll(ctx, files, symbols, modules, repoDoc, chunks)

	docs := make([]store.Document, 0, total)
	appendDoc := func(doc store.Document, err error) error {
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	}
	for i := range symbols {
		if err := appendDoc(store.SymbolDocument(symbols[i])); err != nil {
			return fmt.Errorf("encode symbol document: %w", err)
		}
	}
	for i := range files {
		if err := appendDoc(store.FileDocument(files[i])); err != nil {
			return fmt.Errorf("encode file document: %w", err)
		}
	}
	for i := range modules {
		if err := appendDoc(store.ModuleDocument(modules[i])); err != nil {
			return fmt.Errorf("encode module document: %w", err)
		}
	}
	if repoDoc != nil {
		if err := appendDoc(store.RepoDocument(*repoDoc)); err != nil {
			return fmt.Errorf("encode repo document: %w", err)
		}
	}
	for i := range chunks {
		if err := appendDoc(store.ChunkDocument(chunks[i])); err != nil {
			return fmt.Errorf("encode doc chunk: %w", err)
		}
	}

	if err := u.opts.Store.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(docs), err)
	}

	u.mirrorToVectorStore(ctx, repoID, files, symbols, modules, repoDoc, chunks)
	return nil
}

// embedAll batch-embeds every staged document. Symbols embed their code
// snippet; everything else embeds its summary text. Embedding failure is
// not fatal: documents are still stored, just without vectors.
func (u *Updater) embedAll(ctx context.Context, files []core.FileIndex, symbols []core.SymbolIndex, modules []core.ModuleSummary, repoDoc *core.RepoSummary, chunks []core.DocumentChunk) {
	var texts []string
	var assign []func([]float32)

	add := func(text string, set func([]float32)) {
		texts = append(texts, text)
		assign = append(assign, set)
	}
	for i := range symbols {
		text := symbols[i].SourceCode
		if text == "" {
			text = symbols[i].Content
		}
		add(text, func(v []float32) { symbols[i].Embedding = v })
	}
	for i := range files {
		add(files[i].Content, func(v []float32) { files[i].Embedding = v })
	}
	for i := range modules {
		add(modules[i].Content, func(v []float32) { modules[i].Embedding = v })
	}
	if repoDoc != nil {
		add(repoDoc.Content, func(v []float32) { repoDoc.Embedding = v })
	}
	for i := range chunks {
		add(chunks[i].Content, func(v []float32) { chunks[i].Embedding = v })
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := u.opts.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		u.log.Warn("batch embedding failed, storing documents without vectors",
			"count", len(texts), "error", err)
		return
	}
	for i, vec := range vectors {
		assign[i](vec)
		u.opts.Tracker.RecordEmbedding()
	}
}

// mirrorToVectorStore writes the summaries into Qdrant for semantic search.
// Failures are logged, not propagated: the document store is the source of
// truth.
func (u *Updater) mirrorToVectorStore(ctx context.Context, repoID string, files []core.FileIndex, symbols []core.SymbolIndex, modules []core.ModuleSummary, repoDoc *core.RepoSummary, chunks []core.DocumentChunk) {
	if u.opts.Vectors == nil {
		return
	}

	var docs []schema.Document
	for _, sym := range symbols {
		docs = append(docs, schema.Document{
			PageContent: sym.Content,
			Metadata: map[string]any{
				"document_id": sym.DocumentID,
				"doc_type":    string(core.DocTypeSymbol),
				"repo_id":     sym.RepoID,
				"source":      sym.FilePath,
				"identifier":  sym.SymbolName,
				"language":    sym.Language,
			},
		})
	}
	for _, file := range files {
		docs = append(docs, schema.Document{
			PageContent: file.Content,
			Metadata: map[string]any{
				"document_id": file.DocumentID,
				"doc_type":    string(core.DocTypeFile),
				"repo_id":     file.RepoID,
				"source":      file.FilePath,
				"language":    file.Language,
			},
		})
	}
	for _, mod := range modules {
		docs = append(docs, schema.Document{
			PageContent: mod.Content,
			Metadata: map[string]any{
				"document_id": mod.DocumentID,
				"doc_type":    string(core.DocTypeModule),
				"repo_id":     mod.RepoID,
				"source":      mod.FolderPath,
			},
		})
	}
	if repoDoc != nil {
		docs = append(docs, schema.Document{
			PageContent: repoDoc.Content,
			Metadata: map[string]any{
				"document_id": repoDoc.DocumentID,
				"doc_type":    string(core.DocTypeRepo),
				"repo_id":     repoDoc.RepoID,
			},
		})
	}
	for _, chunk := range chunks {
		docs = append(docs, schema.Document{
			PageContent: chunk.Content,
			Metadata: map[string]any{
				"document_id": chunk.DocumentID,
				"doc_type":    string(core.DocTypeDocChunk),
				"repo_id":     chunk.RepoID,
				"source":      chunk.FilePath,
				"section":     chunk.HeaderPath,
			},
		})
	}

	collection := store.CollectionName(repoID, u.opts.Embedder.ModelID())
	if err := u.opts.Vectors.AddDocuments(ctx, collection, docs); err != nil {
		u.log.Warn("vector mirror failed", "collection", collection, "error", err)
	}
}
