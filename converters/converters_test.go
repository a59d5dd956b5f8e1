package converters

import (
	"testing"

	"github.com/poiesic/embedsync/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText_SplitsParagraphs(t *testing.T) {
	doc := &core.Document{Content: "first paragraph\n\nsecond paragraph\n\n\n\nthird"}

	chunks, err := PlainText(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "first paragraph", chunks[0].Text)
	assert.Equal(t, "0", chunks[0].Extensions["paragraph"])
	assert.Equal(t, "second paragraph", chunks[1].Text)
	assert.Equal(t, "1", chunks[1].Extensions["paragraph"])
	assert.Equal(t, "third", chunks[2].Text)
	assert.Equal(t, "2", chunks[2].Extensions["paragraph"])
}

func TestPlainText_EmptyDocument(t *testing.T) {
	chunks, err := PlainText(&core.Document{Content: "  \n\n \t\n"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdown_SplitsOnHeadings(t *testing.T) {
	doc := &core.Document{Content: `intro text

# Setup

install the thing

run the thing

## Troubleshooting

check the logs
`}

	chunks, err := Markdown(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "intro text", chunks[0].Text)
	assert.Empty(t, chunks[0].Extensions)

	assert.Contains(t, chunks[1].Text, "install the thing")
	assert.Contains(t, chunks[1].Text, "run the thing")
	assert.Equal(t, "Setup", chunks[1].Extensions["heading"])
	assert.Equal(t, "1", chunks[1].Extensions["level"])

	assert.Contains(t, chunks[2].Text, "check the logs")
	assert.Equal(t, "Troubleshooting", chunks[2].Extensions["heading"])
	assert.Equal(t, "2", chunks[2].Extensions["level"])
}

func TestMarkdown_ListsAndQuotes(t *testing.T) {
	doc := &core.Document{Content: `# Notes

- alpha
- beta

> quoted line
`}

	chunks, err := Markdown(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Text, "alpha")
	assert.Contains(t, chunks[0].Text, "beta")
	assert.Contains(t, chunks[0].Text, "quoted line")
}

func TestMarkdown_SoftWrappedParagraph(t *testing.T) {
	// A paragraph wrapped across source lines spans multiple line segments;
	// all of them belong to the same chunk.
	doc := &core.Document{Content: `# Wrapped

first wrapped line
second wrapped line
third wrapped line
`}

	chunks, err := Markdown(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Contains(t, chunks[0].Text, "first wrapped line")
	assert.Contains(t, chunks[0].Text, "second wrapped line")
	assert.Contains(t, chunks[0].Text, "third wrapped line")
	assert.Equal(t, "Wrapped", chunks[0].Extensions["heading"])
}

func TestMarkdown_EmptySectionsDropped(t *testing.T) {
	doc := &core.Document{Content: "# Empty\n\n# Full\n\ncontent\n"}

	chunks, err := Markdown(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Full", chunks[0].Extensions["heading"])
	assert.Equal(t, "content", chunks[0].Text)
}
