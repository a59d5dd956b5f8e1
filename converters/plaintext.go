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


// Package converters provides chunking functions that turn source documents
// into embeddable text chunks, for registration with a pool.Registry.
package converters

import (
	"strconv"
	"strings"

	"github.com/poiesic/embedsync/core"
)

// PlainText splits a document into one chunk per paragraph. Paragraphs are
// separated by blank lines; whitespace-only paragraphs are dropped. Each
// chunk carries its paragraph index as an extension field.
func PlainText(doc *core.Document) ([]core.Chunk, error) {
	var chunks []core.Chunk

	paragraph := 0
	for _, block := range strings.Split(doc.Content, "\n\n") {
		text := strings.TrimSpace(block)
		if text == "" {
			continue
		}
		chunks = append(chunks, core.Chunk{
			Text: text,
			Extensions: map[string]string{
				"paragraph": strconv.Itoa(paragraph),
			},
		})
		paragraph++
	}

	return chunks, nil
}
