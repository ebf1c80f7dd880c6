// Package corpus supplies raw documents to the index builder. The on-disk
// layout is a directory of JSON files, one document per file, as produced by
// the Gutenberg download tooling. The builder consumes documents through the
// Source iterator and never touches the filesystem itself.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

// Document is one raw corpus entry, immutable once handed to the builder.
type Document struct {
	ID             string
	Title          string
	Text           string
	Language       analyzer.Language
	RawLengthBytes int64
	// Preview holds the first bytes of the original text, kept for
	// query-time snippet extraction.
	Preview string
}

// Source enumerates raw documents. Next returns io.EOF after the last
// document; a *ParseError marks a single bad document the caller may skip.
type Source interface {
	// Next returns the next document. Exactly one of the results is set.
	Next() (*Document, error)
	// Len returns the total number of documents the source will yield,
	// including ones that later fail to parse.
	Len() int
	// SizeBytes returns the total raw size of the corpus on disk.
	SizeBytes() int64
	// Fingerprint identifies the exact corpus contents, used to validate
	// build checkpoints.
	Fingerprint() string
}

// ParseError reports a single undecodable document within an otherwise
// healthy corpus.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing document %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrDocumentParse
}

// rawDocument is the JSON shape of a corpus file. Title, language, and
// author are optional.
type rawDocument struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// DirSource reads a directory of *.json documents in lexical filename order,
// which keeps corpus enumeration deterministic across builds.
type DirSource struct {
	dir          string
	files        []string
	pos          int
	totalBytes   int64
	previewBytes int
}

// metadataFile is written by the corpus downloader and is not a document.
const metadataFile = "download_metadata.json"

// NewDirSource scans dir for JSON documents. An unreadable directory is
// ErrCorpusUnavailable; an empty one is a valid source of length zero.
func NewDirSource(dir string, previewBytes int) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorpusUnavailable, "reading corpus directory %s: %v", dir, err)
	}
	if previewBytes <= 0 {
		previewBytes = 512
	}
	var files []string
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == metadataFile {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, entry.Name())
		total += info.Size()
	}
	sort.Strings(files)
	return &DirSource{
		dir:          dir,
		files:        files,
		totalBytes:   total,
		previewBytes: previewBytes,
	}, nil
}

// Next decodes the next document file. A file that is not valid JSON, or has
// no doc_id and no usable filename stem, yields a *ParseError.
func (s *DirSource) Next() (*Document, error) {
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}
	name := s.files[s.pos]
	s.pos++

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if strings.TrimSpace(raw.Text) == "" {
		return nil, &ParseError{Path: path, Err: fmt.Errorf("document has no text")}
	}
	id := raw.DocID
	if id == "" {
		id = strings.TrimSuffix(name, ".json")
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = "Untitled"
	}
	return &Document{
		ID:             id,
		Title:          title,
		Text:           raw.Text,
		Language:       analyzer.ParseLanguage(raw.Language),
		RawLengthBytes: int64(len(data)),
		Preview:        truncateUTF8(raw.Text, s.previewBytes),
	}, nil
}

func (s *DirSource) Len() int {
	return len(s.files)
}

func (s *DirSource) SizeBytes() int64 {
	return s.totalBytes
}

// Fingerprint combines the file list and total size; enough to detect a
// changed corpus between a checkpoint and a resumed build.
func (s *DirSource) Fingerprint() string {
	return fmt.Sprintf("%d:%d:%s", len(s.files), s.totalBytes, strings.Join(firstAndLast(s.files), ","))
}

func firstAndLast(files []string) []string {
	if len(files) == 0 {
		return nil
	}
	if len(files) == 1 {
		return files[:1]
	}
	return []string{files[0], files[len(files)-1]}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
