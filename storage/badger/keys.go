package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/embedsync/core"
)

// Key prefixes for different data types
const (
	runPrefix       = "bulkrun"
	runIDSeq        = "bulkrunseq"
	runPoolPrefix   = "bulkrunp"
	batchPrefix     = "bulkbat"
	batchIDSeq      = "bulkbatseq"
	batchRunPrefix  = "bulkbatr"
	metaPrefix      = "chkmeta"
	metaBatchPrefix = "chkmetab"
	embeddingPrefix = "embrow"
	documentPrefix  = "srcdoc"
)

// appendBigEndian appends an ID in BigEndian order so lexicographic key sort
// matches numeric order.
func appendBigEndian(buf []byte, id core.ID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return append(buf, b[:]...)
}

// makeRunKey generates a key for a run record by ID.
func makeRunKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", runPrefix, id))
}

// makeRunPoolKey generates a composite key for the pool index.
// Format: prefix:pool:id
func makeRunPoolKey(pool string, id core.ID) []byte {
	buf := []byte(runPoolPrefix + ":" + pool + ":")
	return appendBigEndian(buf, id)
}

// makeRunPoolPrefix generates the pool index prefix for one pool.
func makeRunPoolPrefix(pool string) []byte {
	return []byte(runPoolPrefix + ":" + pool + ":")
}

// makeBatchKey generates a key for a batch record by ID.
func makeBatchKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", batchPrefix, id))
}

// makeBatchRunKey generates a composite key for the run index.
// Format: prefix:runID:batchID
func makeBatchRunKey(runID, batchID core.ID) []byte {
	buf := appendBigEndian([]byte(batchRunPrefix+":"), runID)
	return appendBigEndian(buf, batchID)
}

// makeBatchRunPrefix generates the run index prefix for one run.
func makeBatchRunPrefix(runID core.ID) []byte {
	return appendBigEndian([]byte(batchRunPrefix+":"), runID)
}

// makeMetaKey generates the primary key for a chunk staging record.
// Format: prefix:runID:inputID — (runID, inputID) is the unique key.
func makeMetaKey(runID core.ID, inputID string) []byte {
	buf := appendBigEndian([]byte(metaPrefix+":"), runID)
	buf = append(buf, ':')
	return append(buf, inputID...)
}

// makeMetaBatchKey generates a composite key for the batch index.
// Format: prefix:batchID:inputID, value: marshaled runID.
func makeMetaBatchKey(batchID core.ID, inputID string) []byte {
	buf := appendBigEndian([]byte(metaBatchPrefix+":"), batchID)
	buf = append(buf, ':')
	return append(buf, inputID...)
}

// makeMetaBatchPrefix generates the batch index prefix for one batch.
func makeMetaBatchPrefix(batchID core.ID) []byte {
	buf := appendBigEndian([]byte(metaBatchPrefix+":"), batchID)
	return append(buf, ':')
}

// makeEmbeddingKey generates the key for an embedding row. The chunk index is
// encoded BigEndian so rows of one document iterate in chunk order.
func makeEmbeddingKey(pool, collection, docID string, chunkIndex int) []byte {
	buf := makeDocEmbeddingPrefix(pool, collection, docID)
	return appendBigEndian(buf, core.ID(chunkIndex))
}

// makeDocEmbeddingPrefix generates the row prefix for one document.
func makeDocEmbeddingPrefix(pool, collection, docID string) []byte {
	return []byte(embeddingPrefix + ":" + pool + ":" + collection + ":" + docID + ":")
}

// makePoolEmbeddingPrefix generates the row prefix for one pool.
func makePoolEmbeddingPrefix(pool string) []byte {
	return []byte(embeddingPrefix + ":" + pool + ":")
}

// makeDocumentKey generates the key for a source document.
func makeDocumentKey(collection, docID string) []byte {
	return []byte(documentPrefix + ":" + collection + ":" + docID)
}

// makeCollectionPrefix generates the key prefix for one source collection.
func makeCollectionPrefix(collection string) []byte {
	return []byte(documentPrefix + ":" + collection + ":")
}
