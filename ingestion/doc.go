// Package ingestion provides the real-time single-document embedding path.
//
// Where the reembed package synchronizes whole pools in bulk, the Pipeline
// here reacts to individual document changes: a changed document is
// re-chunked and re-embedded in the background, a deleted document has its
// embedding rows dropped. Processing is fire-and-forget on a worker pool;
// errors are logged but never fail the originating write. Gaps left by a
// crashed worker are repaired by the next bulk run, whose eligibility scan
// treats a missing current-version embedding as work.
package ingestion
