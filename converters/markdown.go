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


package converters

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/poiesic/embedsync/core"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown splits a markdown document into one chunk per heading section.
// Content before the first heading becomes a chunk without heading
// extensions; every other chunk carries "heading" and "level" extension
// fields. Heading lines themselves are not part of the chunk text.
func Markdown(doc *core.Document) ([]core.Chunk, error) {
	src := []byte(doc.Content)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var chunks []core.Chunk
	var heading string
	var level int
	var section bytes.Buffer

	flush := func() {
		content := strings.TrimSpace(section.String())
		section.Reset()
		if content == "" {
			return
		}
		chunk := core.Chunk{Text: content}
		if heading != "" {
			chunk.Extensions = map[string]string{
				"heading": heading,
				"level":   strconv.Itoa(level),
			}
		}
		chunks = append(chunks, chunk)
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			flush()
			heading = strings.TrimSpace(string(blockText(h, src)))
			level = h.Level
			continue
		}
		section.Write(blockText(node, src))
		section.WriteString("\n\n")
	}
	flush()

	return chunks, nil
}

// blockText collects the raw source text of a block node, descending into
// container blocks such as lists and quotes.
func blockText(node ast.Node, src []byte) []byte {
	var out bytes.Buffer

	if lines := node.Lines(); lines != nil {
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out.Write(seg.Value(src))
		}
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Type() == ast.TypeBlock {
			out.Write(blockText(child, src))
		}
	}

	return out.Bytes()
}
