// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for every type persisted by the storage layer. Fields are
// encoded in declaration order; timestamps carry a presence flag so the zero
// time survives a round trip, followed by micro-precision unix time.

var (
	// IDMUS serializes an ID.
	IDMUS = idMUS{}
	// StatusMUS serializes a Status.
	StatusMUS = statusMUS{}
	// TimeMUS serializes a time.Time.
	TimeMUS = timeMUS{}
	// ChunkRefMUS serializes a ChunkRef.
	ChunkRefMUS = chunkRefMUS{}
	// RunMUS serializes a Run.
	RunMUS = runMUS{}
	// BatchMUS serializes a Batch.
	BatchMUS = batchMUS{}
	// ChunkMetadataMUS serializes a ChunkMetadata.
	ChunkMetadataMUS = chunkMetadataMUS{}
	// EmbeddingMUS serializes an Embedding.
	EmbeddingMUS = embeddingMUS{}
	// DocumentMUS serializes a Document.
	DocumentMUS = documentMUS{}

	vectorMUS    = ord.NewSliceSer[float32](varint.Float32)
	stringMapMUS = ord.NewMapSer[string, string](ord.String, ord.String)
	refSliceMUS  = ord.NewSliceSer[ChunkRef](ChunkRefMUS)
)

var (
	_ mus.Serializer[ID]            = IDMUS
	_ mus.Serializer[Status]        = StatusMUS
	_ mus.Serializer[time.Time]     = TimeMUS
	_ mus.Serializer[ChunkRef]      = ChunkRefMUS
	_ mus.Serializer[Run]           = RunMUS
	_ mus.Serializer[Batch]         = BatchMUS
	_ mus.Serializer[ChunkMetadata] = ChunkMetadataMUS
	_ mus.Serializer[Embedding]     = EmbeddingMUS
	_ mus.Serializer[Document]      = DocumentMUS
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int { return varint.Uint64.Marshal(uint64(v), bs) }

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(v ID) int { return varint.Uint64.Size(uint64(v)) }

func (idMUS) Skip(bs []byte) (int, error) { return varint.Uint64.Skip(bs) }

type statusMUS struct{}

func (statusMUS) Marshal(v Status, bs []byte) int { return varint.Int.Marshal(int(v), bs) }

func (statusMUS) Unmarshal(bs []byte) (Status, int, error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return Status(v), n, err
}

func (statusMUS) Size(v Status) int { return varint.Int.Size(int(v)) }

func (statusMUS) Skip(bs []byte) (int, error) { return varint.Int.Skip(bs) }

type timeMUS struct{}

func (timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	if v.IsZero() {
		return ord.Bool.Marshal(false, bs)
	}
	n = ord.Bool.Marshal(true, bs)
	n += varint.Int64.Marshal(v.UnixMicro(), bs[n:])
	return n
}

func (timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	set, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !set {
		return time.Time{}, n, err
	}
	micro, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micro).UTC(), n, nil
}

func (timeMUS) Size(v time.Time) int {
	if v.IsZero() {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + varint.Int64.Size(v.UnixMicro())
}

func (timeMUS) Skip(bs []byte) (n int, err error) {
	set, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !set {
		return n, err
	}
	n1, err := varint.Int64.Skip(bs[n:])
	return n + n1, err
}

type chunkRefMUS struct{}

func (chunkRefMUS) Marshal(v ChunkRef, bs []byte) (n int) {
	n = ord.String.Marshal(v.Collection, bs)
	n += ord.String.Marshal(v.DocId, bs[n:])
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	return n
}

func (chunkRefMUS) Unmarshal(bs []byte) (v ChunkRef, n int, err error) {
	var n1 int
	if v.Collection, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.DocId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (chunkRefMUS) Size(v ChunkRef) int {
	return ord.String.Size(v.Collection) + ord.String.Size(v.DocId) +
		varint.Int.Size(v.ChunkIndex)
}

func (s chunkRefMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type runMUS struct{}

func (runMUS) Marshal(v Run, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Pool, bs[n:])
	n += ord.String.Marshal(v.EmbeddingVersion, bs[n:])
	n += StatusMUS.Marshal(v.Status, bs[n:])
	n += varint.Int.Marshal(v.TotalBatches, bs[n:])
	n += varint.Int.Marshal(v.Inputs, bs[n:])
	n += varint.Int.Marshal(v.Succeeded, bs[n:])
	n += varint.Int.Marshal(v.Failed, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += refSliceMUS.Marshal(v.FailedChunks, bs[n:])
	n += TimeMUS.Marshal(v.SubmittedAt, bs[n:])
	n += TimeMUS.Marshal(v.CompletedAt, bs[n:])
	return n
}

func (runMUS) Unmarshal(bs []byte) (v Run, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Pool, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingVersion, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Status, n1, err = StatusMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.TotalBatches, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Inputs, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Succeeded, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Failed, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.FailedChunks, n1, err = refSliceMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SubmittedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.CompletedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (runMUS) Size(v Run) int {
	return IDMUS.Size(v.Id) + ord.String.Size(v.Pool) +
		ord.String.Size(v.EmbeddingVersion) + StatusMUS.Size(v.Status) +
		varint.Int.Size(v.TotalBatches) + varint.Int.Size(v.Inputs) +
		varint.Int.Size(v.Succeeded) + varint.Int.Size(v.Failed) +
		ord.String.Size(v.Error) + refSliceMUS.Size(v.FailedChunks) +
		TimeMUS.Size(v.SubmittedAt) + TimeMUS.Size(v.CompletedAt)
}

func (s runMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type batchMUS struct{}

func (batchMUS) Marshal(v Batch, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.RunId, bs[n:])
	n += varint.Int.Marshal(v.BatchIndex, bs[n:])
	n += ord.String.Marshal(v.ProviderBatchId, bs[n:])
	n += StatusMUS.Marshal(v.Status, bs[n:])
	n += varint.Int.Marshal(v.InputCount, bs[n:])
	n += varint.Int.Marshal(v.SucceededCount, bs[n:])
	n += varint.Int.Marshal(v.FailedCount, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += TimeMUS.Marshal(v.SubmittedAt, bs[n:])
	n += TimeMUS.Marshal(v.CompletedAt, bs[n:])
	return n
}

func (batchMUS) Unmarshal(bs []byte) (v Batch, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.RunId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.BatchIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ProviderBatchId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Status, n1, err = StatusMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InputCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SucceededCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.FailedCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SubmittedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.CompletedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (batchMUS) Size(v Batch) int {
	return IDMUS.Size(v.Id) + IDMUS.Size(v.RunId) +
		varint.Int.Size(v.BatchIndex) + ord.String.Size(v.ProviderBatchId) +
		StatusMUS.Size(v.Status) + varint.Int.Size(v.InputCount) +
		varint.Int.Size(v.SucceededCount) + varint.Int.Size(v.FailedCount) +
		ord.String.Size(v.Error) + TimeMUS.Size(v.SubmittedAt) +
		TimeMUS.Size(v.CompletedAt)
}

func (s batchMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type chunkMetadataMUS struct{}

func (chunkMetadataMUS) Marshal(v ChunkMetadata, bs []byte) (n int) {
	n = IDMUS.Marshal(v.RunId, bs)
	n += IDMUS.Marshal(v.BatchId, bs[n:])
	n += ord.String.Marshal(v.InputId, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += ord.String.Marshal(v.SourceCollection, bs[n:])
	n += ord.String.Marshal(v.DocId, bs[n:])
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += ord.String.Marshal(v.EmbeddingVersion, bs[n:])
	n += stringMapMUS.Marshal(v.Extensions, bs[n:])
	return n
}

func (chunkMetadataMUS) Unmarshal(bs []byte) (v ChunkMetadata, n int, err error) {
	var n1 int
	if v.RunId, n, err = IDMUS.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.BatchId, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InputId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceCollection, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.DocId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingVersion, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.Extensions, n1, err = stringMapMUS.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (chunkMetadataMUS) Size(v ChunkMetadata) int {
	return IDMUS.Size(v.RunId) + IDMUS.Size(v.BatchId) +
		ord.String.Size(v.InputId) + ord.String.Size(v.Text) +
		ord.String.Size(v.SourceCollection) + ord.String.Size(v.DocId) +
		varint.Int.Size(v.ChunkIndex) + ord.String.Size(v.EmbeddingVersion) +
		stringMapMUS.Size(v.Extensions)
}

func (s chunkMetadataMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type embeddingMUS struct{}

func (embeddingMUS) Marshal(v Embedding, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Pool, bs[n:])
	n += ord.String.Marshal(v.SourceCollection, bs[n:])
	n += ord.String.Marshal(v.DocId, bs[n:])
	n += varint.Int.Marshal(v.ChunkIndex, bs[n:])
	n += ord.String.Marshal(v.ChunkText, bs[n:])
	n += ord.String.Marshal(v.EmbeddingVersion, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += stringMapMUS.Marshal(v.Extensions, bs[n:])
	n += TimeMUS.Marshal(v.InsertedAt, bs[n:])
	return n
}

func (embeddingMUS) Unmarshal(bs []byte) (v Embedding, n int, err error) {
	var n1 int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Pool, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceCollection, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.DocId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkIndex, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkText, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingVersion, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Extensions, n1, err = stringMapMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (embeddingMUS) Size(v Embedding) int {
	return IDMUS.Size(v.Id) + ord.String.Size(v.Pool) +
		ord.String.Size(v.SourceCollection) + ord.String.Size(v.DocId) +
		varint.Int.Size(v.ChunkIndex) + ord.String.Size(v.ChunkText) +
		ord.String.Size(v.EmbeddingVersion) + vectorMUS.Size(v.Vector) +
		stringMapMUS.Size(v.Extensions) + TimeMUS.Size(v.InsertedAt)
}

func (s embeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type documentMUS struct{}

func (documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = ord.String.Marshal(v.Collection, bs)
	n += ord.String.Marshal(v.DocId, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += stringMapMUS.Marshal(v.Fields, bs[n:])
	n += TimeMUS.Marshal(v.InsertedAt, bs[n:])
	n += TimeMUS.Marshal(v.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	var n1 int
	if v.Collection, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.DocId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Fields, n1, err = stringMapMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.InsertedAt, n1, err = TimeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	return v, n + n1, err
}

func (documentMUS) Size(v Document) int {
	return ord.String.Size(v.Collection) + ord.String.Size(v.DocId) +
		ord.String.Size(v.Content) + stringMapMUS.Size(v.Fields) +
		TimeMUS.Size(v.InsertedAt) + TimeMUS.Size(v.UpdatedAt)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}
