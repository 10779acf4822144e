// Package core defines the essential data structures shared across the
// ingestion pipeline: parsed symbols, the persisted document kinds of the
// four-level hierarchy (symbol, file, module, repo), change sets, and the
// per-run bookkeeping records. These types are deliberately plain so that
// every other package can depend on them without pulling in transport or
// storage concerns.
package core
