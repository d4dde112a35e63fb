package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/logging"
)

// ErrUnsupportedFormat is returned for files whose text cannot be extracted.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrEmptyDocument is returned when a document yields no text.
var ErrEmptyDocument = errors.New("document contains no text")

// ErrUnreadableDocument is returned when a document of a supported format
// cannot be parsed.
var ErrUnreadableDocument = errors.New("document cannot be read")

// IndexerOptions configure an Indexer.
type IndexerOptions struct {
	ChunkSize    int
	ChunkOverlap int
	Logger       logging.Logger
}

// Indexer turns files into chunks and hands them to a RetrievalStore.
type Indexer struct {
	store    core.RetrievalStore
	splitter *Splitter
	logger   logging.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(store core.RetrievalStore, optFns ...func(o *IndexerOptions)) *Indexer {
	opts := IndexerOptions{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Indexer{
		store:    store,
		splitter: NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		logger:   opts.Logger,
	}
}

// Supported reports whether name has an extension the indexer can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt", ".text", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

// Chunk extracts the text of a document named name and splits it into
// documents carrying "source" and "chunk_id" metadata.
func (ix *Indexer) Chunk(name string, content []byte) ([]core.Document, error) {
	var body string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		body = MarkdownText(content)
	case ".html", ".htm":
		body = HTMLText(content)
	case ".txt", ".text":
		body = strings.TrimSpace(string(content))
	case ".pdf":
		text, err := PDFText(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, ErrUnreadableDocument, err)
		}
		body = text
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if body == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyDocument)
	}

	source := filepath.Base(name)
	chunks := ix.splitter.Split(body)
	docs := make([]core.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = core.Document{
			Content:  c,
			Metadata: map[string]any{"source": source, "chunk_id": i},
		}
	}
	return docs, nil
}

// IndexReader reads a document from r and indexes it under name.
func (ix *Indexer) IndexReader(ctx context.Context, name string, r io.Reader) (int, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	docs, err := ix.Chunk(name, content)
	if err != nil {
		return 0, err
	}
	n, err := ix.store.Index(ctx, docs)
	if err != nil {
		return n, err
	}
	ix.logger.Info("retrieval.indexed", "source", filepath.Base(name), "chunks", n)
	return n, nil
}

// IndexFile indexes the file at path.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	if !Supported(path) {
		return 0, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ix.IndexReader(ctx, path, f)
}

// IndexGlob indexes every supported file below root that matches pattern
// (doublestar syntax, e.g. "**/*.md"). It returns the total chunk count.
// Unsupported, empty and unreadable matches are skipped; any other failure
// aborts the walk.
func (ix *Indexer) IndexGlob(ctx context.Context, root, pattern string) (int, error) {
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid glob pattern: %s", pattern)
	}
	info, err := os.Stat(root)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", root)
	}

	total := 0
	err = doublestar.GlobWalk(os.DirFS(root), pattern, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !Supported(path) {
			ix.logger.Debug("retrieval.skip", "path", path)
			return nil
		}
		n, err := ix.IndexFile(ctx, filepath.Join(root, filepath.FromSlash(path)))
		if errors.Is(err, ErrEmptyDocument) {
			ix.logger.Warn("retrieval.empty", "path", path)
			return nil
		}
		if errors.Is(err, ErrUnreadableDocument) {
			ix.logger.Warn("retrieval.unreadable", "path", path, "error", err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	return total, err
}
