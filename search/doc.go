// Package search provides semantic search over the embedding rows of a
// knowledge pool. A query is embedded with the same model family that
// produced the rows, matched by cosine similarity, and chunks that contain
// every query word verbatim are boosted above merely similar ones.
package search
