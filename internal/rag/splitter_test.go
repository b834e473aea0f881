package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carepoint/medassist/internal/model"
)

func TestSplitterRespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)
	text := strings.Repeat("word ", 200)
	chunks := s.Split([]model.PageDocument{{SourceFile: "notes.txt", Page: 1, Text: text}})

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk.Text)), 100, "chunk %s too long", chunk.ID)
		require.NotEmpty(t, strings.TrimSpace(chunk.Text))
	}
}

func TestSplitterPrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 70)
	para2 := strings.Repeat("b", 70)
	s := NewSplitter(100, 0)
	chunks := s.Split([]model.PageDocument{{SourceFile: "f.txt", Page: 1, Text: para1 + "\n\n" + para2}})

	require.Len(t, chunks, 2)
	require.Equal(t, para1, chunks[0].Text)
	require.Equal(t, para2, chunks[1].Text)
}

func TestSplitterOffsetsAreDeterministic(t *testing.T) {
	text := strings.Repeat("The patient was administered the standard dose. ", 60)
	doc := model.PageDocument{SourceFile: "records.pdf", Page: 4, Text: text}
	s := NewSplitter(0, -1)

	first := s.Split([]model.PageDocument{doc})
	second := s.Split([]model.PageDocument{doc})
	require.Equal(t, first, second)

	seen := map[string]bool{}
	for _, chunk := range first {
		require.Equal(t, model.ChunkID("records.pdf", 4, chunk.StartOffset), chunk.ID)
		require.False(t, seen[chunk.ID], "duplicate chunk id %s", chunk.ID)
		seen[chunk.ID] = true
		require.Equal(t, 4, chunk.Page)
		require.Equal(t, "records.pdf", chunk.SourceFile)
	}
}

func TestSplitterOverlapCarriesContext(t *testing.T) {
	// No separators at all, so every cut is a hard cut and the overlap is
	// exactly the configured width.
	text := strings.Repeat("x", 250)
	s := NewSplitter(100, 20)
	chunks := s.Split([]model.PageDocument{{SourceFile: "f.txt", Page: 1, Text: text}})

	require.GreaterOrEqual(t, len(chunks), 2)
	require.Equal(t, 0, chunks[0].StartOffset)
	require.Equal(t, 80, chunks[1].StartOffset)
}

func TestSplitterShortAndEmptyInput(t *testing.T) {
	s := NewSplitter(1000, 100)

	require.Nil(t, s.Split(nil))
	require.Nil(t, s.Split([]model.PageDocument{{SourceFile: "f.txt", Page: 1, Text: "   \n\t  "}}))

	chunks := s.Split([]model.PageDocument{{SourceFile: "f.txt", Page: 1, Text: "short note"}})
	require.Len(t, chunks, 1)
	require.Equal(t, "short note", chunks[0].Text)
	require.Equal(t, 0, chunks[0].StartOffset)
}

func TestSplitterDegenerateOverlapTerminates(t *testing.T) {
	// overlap >= size must not loop forever; the constructor clamps it.
	s := NewSplitter(50, 50)
	text := strings.Repeat("y", 500)
	chunks := s.Split([]model.PageDocument{{SourceFile: "f.txt", Page: 1, Text: text}})
	require.NotEmpty(t, chunks)
	require.Less(t, len(chunks), 100)
}

func TestSplitterMultiByteRunes(t *testing.T) {
	text := strings.Repeat("疼痛管理指南。", 50)
	s := NewSplitter(60, 10)
	chunks := s.Split([]model.PageDocument{{SourceFile: "cn.txt", Page: 1, Text: text}})

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk.Text)), 60)
		require.True(t, strings.HasPrefix(string([]rune(text)[chunk.StartOffset:]), chunk.Text),
			"offset %d does not line up with chunk text", chunk.StartOffset)
	}
}
