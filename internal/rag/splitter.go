package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/carepoint/medassist/internal/model"
)

// DefaultChunkSize is the target chunk length in runes. 1000 with 100
// overlap retains enough surrounding clinical context per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the rune overlap between consecutive chunks.
const DefaultChunkOverlap = 100

// Chunk boundary preference, best first. Falls back to a hard cut when no
// separator appears in the back half of the window.
var separators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts page documents into overlapping chunks sized for embedding.
// Splitting is deterministic: the same input always yields the same
// (source, page, offset) triples, which keeps re-ingestion idempotent.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split tolerates empty input and produces no error paths at all: chunking
// is pure computation.
func (s *Splitter) Split(docs []model.PageDocument) []model.DocumentChunk {
	var chunks []model.DocumentChunk
	for _, doc := range docs {
		chunks = append(chunks, s.splitPage(doc)...)
	}
	return chunks
}

func (s *Splitter) splitPage(doc model.PageDocument) []model.DocumentChunk {
	runes := []rune(doc.Text)
	var chunks []model.DocumentChunk

	start := skipSpace(runes, 0)
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}

		content := strings.TrimRight(string(runes[start:end]), " \n\t")
		if content != "" {
			chunks = append(chunks, model.DocumentChunk{
				ID:          model.ChunkID(doc.SourceFile, doc.Page, start),
				Text:        content,
				SourceFile:  doc.SourceFile,
				Page:        doc.Page,
				StartOffset: start,
			})
		}
		if end >= len(runes) {
			break
		}
		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = skipSpace(runes, next)
	}
	return chunks
}

// cutPoint picks the best boundary in (start, limit]. Separators are only
// honored in the back half of the window so chunks never collapse to
// fragments.
func (s *Splitter) cutPoint(runes []rune, start, limit int) int {
	lo := start + s.chunkSize/2
	window := string(runes[lo:limit])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		return lo + utf8.RuneCountInString(window[:idx+len(sep)])
	}
	return limit
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}
