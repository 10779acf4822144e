package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Document identifiers are content-derived: the SHA-256 of a canonical key
// string. The same key always yields the same identifier, which makes every
// store upsert idempotent and identifiers stable across runs at the same
// commit.

// Commit12 returns the first 12 characters of a commit hash, the form used
// inside canonical document keys.
func Commit12(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// SymbolDocID derives the identifier for a SymbolIndex document.
func SymbolDocID(repoID, filePath, symbolName, commit string) string {
	return hashKey(fmt.Sprintf("symbol:%s:%s:%s:%s", repoID, filePath, symbolName, Commit12(commit)))
}

// FileDocID derives the identifier for a FileIndex document.
func FileDocID(repoID, filePath, commit string) string {
	return hashKey(fmt.Sprintf("file:%s:%s:%s", repoID, filePath, Commit12(commit)))
}

// ModuleDocID derives the identifier for a ModuleSummary document.
func ModuleDocID(repoID, folderPath, commit string) string {
	return hashKey(fmt.Sprintf("module:%s:%s:%s", repoID, folderPath, Commit12(commit)))
}

// RepoDocID derives the identifier for a RepoSummary document.
func RepoDocID(repoID, commit string) string {
	return hashKey(fmt.Sprintf("repo:%s:%s", repoID, Commit12(commit)))
}

// DocChunkID derives the identifier for a DocumentChunk. Documentation chunks
// use a short 16-hex-character hash with a fixed prefix.
func DocChunkID(repoID, filePath string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%d", repoID, filePath, index))
	return "document::" + hex.EncodeToString(sum[:8])
}
