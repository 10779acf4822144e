package core

import "time"

// DocType discriminates the persisted document kinds.
type DocType string

const (
	DocTypeSymbol   DocType = "symbol_index"
	DocTypeFile     DocType = "file_index"
	DocTypeModule   DocType = "module_summary"
	DocTypeRepo     DocType = "repo_summary"
	DocTypeDocChunk DocType = "document_chunk"
)

// EnrichmentLevel records how a document's summary was produced.
type EnrichmentLevel string

const (
	EnrichmentLLM   EnrichmentLevel = "llm_summary"
	EnrichmentBasic EnrichmentLevel = "basic"
	EnrichmentNone  EnrichmentLevel = "none"
)

// SchemaVersion and PipelineVersion stamp every written document so readers
// can detect shape changes.
const (
	SchemaVersion   = "2"
	PipelineVersion = "1.4.0"
)

// Quality is a truthful record of how a document's content was built.
type Quality struct {
	EnrichmentLevel  EnrichmentLevel `json:"enrichment_level"`
	LLMAvailable     bool            `json:"llm_available"`
	SummarySource    string          `json:"summary_source,omitempty"`
	IsUnderchunked   bool            `json:"is_underchunked,omitempty"`
	UnderchunkReason string          `json:"underchunk_reason,omitempty"`
	LLMChunksAdded   int             `json:"llm_chunks_added,omitempty"`
}

// Version carries schema/pipeline stamps and timestamps.
type Version struct {
	SchemaVersion   string    `json:"schema_version"`
	PipelineVersion string    `json:"pipeline_version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewVersion returns a Version stamped with the current schema and pipeline
// versions and the given time.
func NewVersion(now time.Time) Version {
	return Version{
		SchemaVersion:   SchemaVersion,
		PipelineVersion: PipelineVersion,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SymbolIndex is the persisted document for one significant symbol.
type SymbolIndex struct {
	DocumentID string     `json:"document_id"`
	RepoID     string     `json:"repo_id"`
	FilePath   string     `json:"file_path"`
	CommitHash string     `json:"commit_hash"`
	Language   string     `json:"language"`
	SymbolName string     `json:"symbol_name"`
	SymbolType SymbolKind `json:"symbol_type"`

	// Content is the natural-language summary and the embedding source.
	Content string `json:"content"`

	StartLine int         `json:"start_line"`
	EndLine   int         `json:"end_line"`
	Docstring string      `json:"docstring,omitempty"`
	Methods   []MethodRef `json:"methods,omitempty"`
	Inherits  []string    `json:"inherits,omitempty"`

	ParentID string  `json:"parent_id"`
	Quality  Quality `json:"quality"`
	Version  Version `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`

	// SourceCode is the raw snippet used as the embedding input. It is not
	// persisted in the document payload.
	SourceCode string `json:"-"`
}

// FileSymbol is the per-symbol entry inside FileIndex.Symbols. Every parsed
// symbol appears here, significant or not.
type FileSymbol struct {
	Name        string     `json:"name"`
	Kind        SymbolKind `json:"kind"`
	StartLine   int        `json:"start_line"`
	EndLine     int        `json:"end_line"`
	Docstring   string     `json:"docstring,omitempty"`
	Significant bool       `json:"significant"`
}

// FileIndex is the persisted document for one processed source file.
type FileIndex struct {
	DocumentID string `json:"document_id"`
	RepoID     string `json:"repo_id"`
	FilePath   string `json:"file_path"`
	CommitHash string `json:"commit_hash"`
	Language   string `json:"language"`

	Content   string   `json:"content"`
	LineCount int      `json:"line_count"`
	Imports   []string `json:"imports,omitempty"`

	Symbols     []FileSymbol `json:"symbols"`
	ChildrenIDs []string     `json:"children_ids"`
	ParentID    string       `json:"parent_id,omitempty"`

	Quality Quality `json:"quality"`
	Version Version `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// ModuleSummary is the persisted document for one folder.
type ModuleSummary struct {
	DocumentID string `json:"document_id"`
	RepoID     string `json:"repo_id"`
	FolderPath string `json:"folder_path"`
	CommitHash string `json:"commit_hash"`

	Content   string   `json:"content"`
	FileCount int      `json:"file_count"`
	KeyFiles  []string `json:"key_files,omitempty"`

	ParentID    string   `json:"parent_id"`
	ChildrenIDs []string `json:"children_ids"`

	Quality Quality `json:"quality"`
	Version Version `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// RepoSummary is the persisted document for one (repo, commit).
type RepoSummary struct {
	DocumentID string `json:"document_id"`
	RepoID     string `json:"repo_id"`
	CommitHash string `json:"commit_hash"`

	Content    string         `json:"content"`
	TotalFiles int            `json:"total_files"`
	TotalLines int            `json:"total_lines"`
	Languages  map[string]int `json:"languages"`
	TechStack  []string       `json:"tech_stack,omitempty"`
	TopModules []string       `json:"top_modules,omitempty"`

	ChildrenIDs []string `json:"children_ids"`

	Quality Quality `json:"quality"`
	Version Version `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`
}

// DocType constants for documentation chunks.
const (
	DocFormatMarkdown  = "markdown"
	DocFormatRST       = "rst"
	DocFormatPlaintext = "plaintext"
)

// DocumentChunk is one chunk of a documentation file (.md, .rst, .txt).
// Doc chunks are embedded and stored like code documents but carry no symbol
// hierarchy.
type DocumentChunk struct {
	DocumentID string `json:"document_id"`
	RepoID     string `json:"repo_id"`
	FilePath   string `json:"file_path"`
	CommitHash string `json:"commit_hash"`

	Content     string `json:"content"`
	DocFormat   string `json:"doc_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`

	SectionTitle string `json:"section_title,omitempty"`
	HeaderPath   string `json:"header_path,omitempty"`
	HeaderLevel  int    `json:"header_level,omitempty"`

	Version Version `json:"version"`

	Embedding []float32 `json:"embedding,omitempty"`
}
