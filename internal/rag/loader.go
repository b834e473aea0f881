package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/carepoint/medassist/internal/docstore"
	"github.com/carepoint/medassist/internal/model"
)

// Loader turns the raw document corpus into page-level documents.
// Medical corpora are mixed quality: one unreadable file must never abort
// the rest, so Load reports problems through the log and keeps going.
type Loader struct {
	store docstore.Store
}

func NewLoader(store docstore.Store) *Loader {
	return &Loader{store: store}
}

// Load returns every readable page in the corpus. It returns an empty slice
// rather than an error on total failure.
func (l *Loader) Load(ctx context.Context) []model.PageDocument {
	logger := logutil.GetLogger(ctx)
	if l.store == nil {
		logger.Error("document store not configured")
		return nil
	}
	keys, err := l.store.List(ctx)
	if err != nil {
		logger.Error("failed to list document corpus", zap.Error(err))
		return nil
	}

	var docs []model.PageDocument
	for _, key := range keys {
		pages, err := l.loadFile(ctx, key)
		if err != nil {
			logger.Warn("skipping unreadable document", zap.String("key", key), zap.Error(err))
			continue
		}
		docs = append(docs, pages...)
	}
	logger.Info("document corpus loaded", zap.Int("files", len(keys)), zap.Int("pages", len(docs)))
	return docs
}

func (l *Loader) loadFile(ctx context.Context, key string) ([]model.PageDocument, error) {
	fileName := path.Base(key)
	switch strings.ToLower(path.Ext(key)) {
	case ".pdf":
		return l.loadPDF(ctx, key, fileName)
	case ".md", ".markdown":
		return l.loadMarkdown(ctx, key, fileName)
	case ".txt":
		return l.loadText(ctx, key, fileName)
	default:
		logutil.GetLogger(ctx).Debug("unsupported document type skipped", zap.String("key", key))
		return nil, nil
	}
}

func (l *Loader) loadPDF(ctx context.Context, key, fileName string) (docs []model.PageDocument, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("pdf decode panic: %v", r)
		}
	}()

	data, err := l.readAll(ctx, key)
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	logger := logutil.GetLogger(ctx)
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("failed to extract pdf page", zap.String("file", fileName), zap.Int("page", i), zap.Error(err))
			continue
		}
		content = cleanText(content)
		if content == "" {
			continue
		}
		docs = append(docs, model.PageDocument{
			SourceFile: fileName,
			Page:       i,
			Text:       content,
		})
	}
	return docs, nil
}

func (l *Loader) loadMarkdown(ctx context.Context, key, fileName string) ([]model.PageDocument, error) {
	data, err := l.readAll(ctx, key)
	if err != nil {
		return nil, err
	}
	content := cleanText(markdownToPlainText(data))
	if content == "" {
		return nil, nil
	}
	return []model.PageDocument{{SourceFile: fileName, Page: 1, Text: content}}, nil
}

func (l *Loader) loadText(ctx context.Context, key, fileName string) ([]model.PageDocument, error) {
	data, err := l.readAll(ctx, key)
	if err != nil {
		return nil, err
	}
	content := cleanText(string(data))
	if content == "" {
		return nil, nil
	}
	return []model.PageDocument{{SourceFile: fileName, Page: 1, Text: content}}, nil
}

func (l *Loader) readAll(ctx context.Context, key string) ([]byte, error) {
	r, err := l.store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// markdownToPlainText strips markdown structure, keeping block boundaries as
// blank lines so the splitter can still prefer paragraph breaks.
func markdownToPlainText(source []byte) string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if block := extractText(node, source); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			for i := 0; i < t.Lines().Len(); i++ {
				line := t.Lines().At(i)
				sb.Write(line.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
