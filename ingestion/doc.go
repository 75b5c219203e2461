// Package ingestion loads books into a repository.
//
// The Importer reads Project Gutenberg plain-text ebooks and JSON catalogs,
// including:
//   - Parsing files concurrently on a worker pool
//   - Skipping books whose content is already stored
//   - Writing in batches, retrying transactions that fail transiently
//
// The Watcher re-runs an import whenever a watched directory changes, with
// bursts of file events collapsed into one import.
package ingestion
