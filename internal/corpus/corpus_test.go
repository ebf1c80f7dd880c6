package corpus

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func drain(t *testing.T, s Source) (docs []*Document, parseErrs int) {
	t.Helper()
	for {
		doc, err := s.Next()
		if err == io.EOF {
			return docs, parseErrs
		}
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			parseErrs++
			continue
		}
		docs = append(docs, doc)
	}
}

func TestDirSourceReadsDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pg100.json", `{"doc_id":"pg100","title":"Shakespeare","language":"en","text":"To be or not to be"}`)
	writeFile(t, dir, "pg200.json", `{"doc_id":"pg200","title":"Quijote","language":"es","text":"En un lugar de la Mancha"}`)
	writeFile(t, dir, "download_metadata.json", `{"downloaded": 2}`)
	writeFile(t, dir, "notes.txt", "not a document")

	src, err := NewDirSource(dir, 512)
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", src.Len())
	}
	docs, parseErrs := drain(t, src)
	if parseErrs != 0 {
		t.Fatalf("parse errors: %d", parseErrs)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].ID != "pg100" || docs[0].Language != analyzer.English {
		t.Errorf("doc 0 = %q lang %q", docs[0].ID, docs[0].Language)
	}
	if docs[1].Language != analyzer.Spanish {
		t.Errorf("doc 1 language = %q, want spanish", docs[1].Language)
	}
}

func TestDirSourceDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pg300.json", `{"text":"a document with no title or language field at all"}`)

	src, err := NewDirSource(dir, 512)
	if err != nil {
		t.Fatal(err)
	}
	docs, _ := drain(t, src)
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	doc := docs[0]
	if doc.ID != "pg300" {
		t.Errorf("ID = %q, want filename stem pg300", doc.ID)
	}
	if doc.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", doc.Title)
	}
	if doc.Language != analyzer.Unknown {
		t.Errorf("Language = %q, want unknown", doc.Language)
	}
}

func TestDirSourceParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{not json at all`)
	writeFile(t, dir, "empty.json", `{"doc_id":"empty","text":"   "}`)
	writeFile(t, dir, "good.json", `{"doc_id":"good","text":"some real content here"}`)

	src, err := NewDirSource(dir, 512)
	if err != nil {
		t.Fatal(err)
	}
	docs, parseErrs := drain(t, src)
	if parseErrs != 2 {
		t.Errorf("parse errors = %d, want 2", parseErrs)
	}
	if len(docs) != 1 || docs[0].ID != "good" {
		t.Errorf("docs = %v, want only good", docs)
	}
}

func TestDirSourceUnavailable(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "does-not-exist"), 512)
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Fatalf("err = %v, want ErrCorpusUnavailable", err)
	}
}

func TestDirSourcePreviewTruncation(t *testing.T) {
	dir := t.TempDir()
	long := ""
	for i := 0; i < 100; i++ {
		long += "palabra "
	}
	writeFile(t, dir, "long.json", `{"doc_id":"long","text":"`+long+`"}`)

	src, err := NewDirSource(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	docs, _ := drain(t, src)
	if len(docs) != 1 {
		t.Fatal("expected one doc")
	}
	if len(docs[0].Preview) > 64 {
		t.Errorf("preview length = %d, want <= 64", len(docs[0].Preview))
	}
}

func TestFingerprintChangesWithContents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"doc_id":"a","text":"first"}`)
	src1, _ := NewDirSource(dir, 512)
	fp1 := src1.Fingerprint()

	writeFile(t, dir, "b.json", `{"doc_id":"b","text":"second"}`)
	src2, _ := NewDirSource(dir, 512)
	if src2.Fingerprint() == fp1 {
		t.Error("fingerprint did not change after adding a document")
	}
}
