package store

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/gutensearch/gutensearch/internal/analyzer"
	"github.com/gutensearch/gutensearch/internal/index"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

func sampleIndex() *index.Index {
	terms := map[string]index.PostingList{
		"love":      {{DocID: "d1", Frequency: 1}},
		"marriag":   {{DocID: "d1", Frequency: 1}, {DocID: "d2", Frequency: 1}},
		"scienc":    {{DocID: "d2", Frequency: 1}, {DocID: "d3", Frequency: 1}},
		"discoveri": {{DocID: "d3", Frequency: 1}},
	}
	idf := map[string]float64{
		"love":      1.0217,
		"marriag":   0.4700,
		"scienc":    0.4700,
		"discoveri": 1.0217,
	}
	docs := map[string]index.DocInfo{
		"d1": {ID: "d1", Title: "First", Language: analyzer.English, TokenCount: 2, RawLengthBytes: 17, Preview: "love and marriage"},
		"d2": {ID: "d2", Title: "Second", Language: analyzer.English, TokenCount: 2, RawLengthBytes: 20, Preview: "marriage and science"},
		"d3": {ID: "d3", Title: "Third", Language: analyzer.English, TokenCount: 2, RawLengthBytes: 17, Preview: "science discovery"},
	}
	meta := index.Metadata{
		DocumentsSkipped:      1,
		AverageDocumentLength: 2,
		CorpusSizeBytes:       54,
		BuildTimestamp:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	return index.FromParts(terms, idf, docs, meta)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orig := sampleIndex()
	if err := Save(orig, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !reflect.DeepEqual(loaded.Vocabulary(), orig.Vocabulary()) {
		t.Errorf("vocabulary = %v, want %v", loaded.Vocabulary(), orig.Vocabulary())
	}
	for _, term := range orig.Vocabulary() {
		if !reflect.DeepEqual(loaded.Postings(term), orig.Postings(term)) {
			t.Errorf("postings for %q = %+v, want %+v", term, loaded.Postings(term), orig.Postings(term))
		}
		if loaded.IDF(term) != orig.IDF(term) {
			t.Errorf("idf for %q = %v, want %v", term, loaded.IDF(term), orig.IDF(term))
		}
	}
	if !reflect.DeepEqual(loaded.Documents(), orig.Documents()) {
		t.Errorf("documents differ after round trip")
	}
	if !reflect.DeepEqual(loaded.Metadata(), orig.Metadata()) {
		t.Errorf("metadata = %+v, want %+v", loaded.Metadata(), orig.Metadata())
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Fatalf("err = %v, want ErrIndexNotFound", err)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	for _, victim := range []string{PostingsFile, MetadataFile, IDFFile} {
		t.Run(victim, func(t *testing.T) {
			dir := t.TempDir()
			if err := Save(sampleIndex(), dir); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := os.Remove(filepath.Join(dir, victim)); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir)
			if !errors.Is(err, apperrors.ErrIndexNotFound) {
				t.Fatalf("err = %v, want ErrIndexNotFound", err)
			}
		})
	}
}

func TestLoadTruncatedPostings(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, PostingsFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-10); err != nil {
		t.Fatal(err)
	}
	_, err = Load(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestLoadBadMagic(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, PostingsFile)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	bad := make([]byte, 4)
	binary.LittleEndian.PutUint32(bad, 0xDEADBEEF)
	if _, err := f.WriteAt(bad, 0); err != nil {
		t.Fatal(err)
	}
	f.Close()
	_, err = Load(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestLoadCorruptDictionaryChecksum(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, PostingsFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Flip one byte inside the dictionary region, just before the footer.
	if _, err := f.WriteAt([]byte{'~'}, info.Size()-footerSize-2); err != nil {
		t.Fatal(err)
	}
	f.Close()
	_, err = Load(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, []byte(`{"format_version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestLoadMalformedIDF(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, IDFFile), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("err = %v, want ErrIndexCorrupt", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(sampleIndex(), dir); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load after overwrite: %v", err)
	}
	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestStagingCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewStaging(dir)

	if err := st.SaveCheckpoint(sampleIndex(), 4, "fp-1"); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	ix, batchesDone, err := st.LoadCheckpoint("fp-1")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if ix == nil {
		t.Fatal("expected staged index")
	}
	if batchesDone != 4 {
		t.Errorf("batchesDone = %d, want 4", batchesDone)
	}
	if ix.Metadata().DocumentsCount != 3 {
		t.Errorf("DocumentsCount = %d, want 3", ix.Metadata().DocumentsCount)
	}

	if err := st.ClearCheckpoint(); err != nil {
		t.Fatalf("ClearCheckpoint: %v", err)
	}
	ix, _, err = st.LoadCheckpoint("fp-1")
	if err != nil || ix != nil {
		t.Fatalf("after clear: ix = %v, err = %v, want nil, nil", ix, err)
	}
}

func TestStagingIgnoresForeignFingerprint(t *testing.T) {
	dir := t.TempDir()
	st := NewStaging(dir)
	if err := st.SaveCheckpoint(sampleIndex(), 2, "fp-old"); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	ix, batchesDone, err := st.LoadCheckpoint("fp-new")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if ix != nil || batchesDone != 0 {
		t.Errorf("got ix = %v, batches = %d; a changed corpus must invalidate the checkpoint", ix, batchesDone)
	}
}
