// Package store persists a built index as three artifacts in one directory:
//
//	postings.gix  binary doc table, per-term postings blocks, term dictionary
//	metadata.json summary statistics, cheap to inspect without the postings
//	idf.json      term to inverse document frequency table
//
// All three carry the same format version and must be present and valid for
// a load to succeed; a load never returns a partially initialized index.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/gutensearch/gutensearch/internal/index"
	apperrors "github.com/gutensearch/gutensearch/pkg/errors"
)

const (
	// MagicBytes identifies a postings.gix file ("GIDX").
	MagicBytes    uint32 = 0x47494458
	FormatVersion uint32 = 1
	headerSize           = 64
	footerSize           = 16
)

const (
	PostingsFile = "postings.gix"
	MetadataFile = "metadata.json"
	IDFFile      = "idf.json"
)

// fileHeader is the fixed 64-byte header at the start of postings.gix.
type fileHeader struct {
	Magic     uint32
	Version   uint32
	TermCount uint32
	DocCount  uint32
	DocOff    int64
	DocSize   int64
	PostOff   int64
	PostSize  int64
	DictOff   int64
	DictSize  int64
}

// dictEntry maps a term to its postings block within the file.
type dictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// metadataEnvelope adds the format version to the persisted summary.
type metadataEnvelope struct {
	FormatVersion uint32 `json:"format_version"`
	index.Metadata
}

// idfEnvelope adds the format version to the persisted IDF table.
type idfEnvelope struct {
	FormatVersion uint32             `json:"format_version"`
	IDF           map[string]float64 `json:"idf"`
}

// Save writes all three artifacts into dir. Each file is written to a .tmp
// path and renamed, so a crash mid-save never leaves a torn artifact behind.
func Save(ix *index.Index, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := writePostings(ix, filepath.Join(dir, PostingsFile)); err != nil {
		return err
	}
	meta := metadataEnvelope{FormatVersion: FormatVersion, Metadata: ix.Metadata()}
	if err := writeJSON(filepath.Join(dir, MetadataFile), meta); err != nil {
		return err
	}
	idf := idfEnvelope{FormatVersion: FormatVersion, IDF: ix.IDFTable()}
	return writeJSON(filepath.Join(dir, IDFFile), idf)
}

// Load reads the three artifacts back into an immutable Index. A missing
// artifact is ErrIndexNotFound; anything structurally wrong (bad magic,
// version mismatch, truncation, checksum failure, inconsistent tables) is
// ErrIndexCorrupt.
func Load(dir string) (*index.Index, error) {
	for _, name := range []string{PostingsFile, MetadataFile, IDFFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, apperrors.Newf(apperrors.ErrIndexNotFound, "missing artifact %s in %s", name, dir)
		}
	}

	var meta metadataEnvelope
	if err := readJSON(filepath.Join(dir, MetadataFile), &meta); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "metadata: %v", err)
	}
	if meta.FormatVersion != FormatVersion {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"metadata format version %d, want %d", meta.FormatVersion, FormatVersion)
	}

	var idf idfEnvelope
	if err := readJSON(filepath.Join(dir, IDFFile), &idf); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "idf table: %v", err)
	}
	if idf.FormatVersion != FormatVersion {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"idf format version %d, want %d", idf.FormatVersion, FormatVersion)
	}

	terms, docs, err := readPostings(filepath.Join(dir, PostingsFile))
	if err != nil {
		return nil, err
	}
	if len(idf.IDF) != len(terms) {
		return nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"idf table has %d terms, postings have %d", len(idf.IDF), len(terms))
	}
	return index.FromParts(terms, idf.IDF, docs, meta.Metadata), nil
}

func writePostings(ix *index.Index, finalPath string) error {
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating postings file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("reserving header: %w", err)
	}

	docData, err := json.Marshal(ix.Documents())
	if err != nil {
		return fmt.Errorf("marshaling doc table: %w", err)
	}
	docOff := int64(headerSize)
	if _, err := f.Write(docData); err != nil {
		return fmt.Errorf("writing doc table: %w", err)
	}

	postOff := docOff + int64(len(docData))
	terms := ix.Vocabulary()
	dict := make([]dictEntry, 0, len(terms))
	written := int64(0)
	for _, term := range terms {
		postings := ix.Postings(term)
		block, err := json.Marshal(postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", term, err)
		}
		if _, err := f.Write(block); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", term, err)
		}
		dict = append(dict, dictEntry{
			Term:       term,
			PostOffset: written,
			PostLen:    len(block),
			DocFreq:    len(postings),
		})
		written += int64(len(block))
	}

	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	dictOff := postOff + written
	if _, err := f.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docData))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(terms)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(ix.Metadata().DocumentsCount))
	binary.LittleEndian.PutUint64(header[16:24], uint64(docOff))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(docData)))
	binary.LittleEndian.PutUint64(header[32:40], uint64(postOff))
	binary.LittleEndian.PutUint64(header[40:48], uint64(written))
	binary.LittleEndian.PutUint64(header[48:56], uint64(dictOff))
	binary.LittleEndian.PutUint64(header[56:64], uint64(len(dictData)))
	if _, err := f.WriteAt(header, 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing postings file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing postings file: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

func readPostings(path string) (map[string]index.PostingList, map[string]index.DocInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexNotFound, "opening postings file: %v", err)
	}
	defer f.Close()

	raw := make([]byte, headerSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "reading header: %v", err)
	}
	hdr := fileHeader{
		Magic:     binary.LittleEndian.Uint32(raw[0:4]),
		Version:   binary.LittleEndian.Uint32(raw[4:8]),
		TermCount: binary.LittleEndian.Uint32(raw[8:12]),
		DocCount:  binary.LittleEndian.Uint32(raw[12:16]),
		DocOff:    int64(binary.LittleEndian.Uint64(raw[16:24])),
		DocSize:   int64(binary.LittleEndian.Uint64(raw[24:32])),
		PostOff:   int64(binary.LittleEndian.Uint64(raw[32:40])),
		PostSize:  int64(binary.LittleEndian.Uint64(raw[40:48])),
		DictOff:   int64(binary.LittleEndian.Uint64(raw[48:56])),
		DictSize:  int64(binary.LittleEndian.Uint64(raw[56:64])),
	}
	if hdr.Magic != MagicBytes {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "bad magic bytes %x", hdr.Magic)
	}
	if hdr.Version != FormatVersion {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"postings format version %d, want %d", hdr.Version, FormatVersion)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "stat: %v", err)
	}
	expectedLen := hdr.DictOff + hdr.DictSize + footerSize
	if info.Size() != expectedLen {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"file is %d bytes, header implies %d", info.Size(), expectedLen)
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, hdr.DictOff+hdr.DictSize); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "reading footer: %v", err)
	}

	docData := make([]byte, hdr.DocSize)
	if _, err := f.ReadAt(docData, hdr.DocOff); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "reading doc table: %v", err)
	}
	if crc32.ChecksumIEEE(docData) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, nil, apperrors.New(apperrors.ErrIndexCorrupt, "doc table checksum mismatch")
	}
	var docRows []index.DocInfo
	if err := json.Unmarshal(docData, &docRows); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "parsing doc table: %v", err)
	}
	if len(docRows) != int(hdr.DocCount) {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"doc table has %d rows, header says %d", len(docRows), hdr.DocCount)
	}
	docs := make(map[string]index.DocInfo, len(docRows))
	for _, d := range docRows {
		docs[d.ID] = d
	}

	dictData := make([]byte, hdr.DictSize)
	if _, err := f.ReadAt(dictData, hdr.DictOff); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "reading dictionary: %v", err)
	}
	if crc32.ChecksumIEEE(dictData) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, nil, apperrors.New(apperrors.ErrIndexCorrupt, "dictionary checksum mismatch")
	}
	var dict []dictEntry
	if err := json.Unmarshal(dictData, &dict); err != nil {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt, "parsing dictionary: %v", err)
	}
	if len(dict) != int(hdr.TermCount) {
		return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
			"dictionary has %d terms, header says %d", len(dict), hdr.TermCount)
	}

	terms := make(map[string]index.PostingList, len(dict))
	for _, entry := range dict {
		block := make([]byte, entry.PostLen)
		if _, err := f.ReadAt(block, hdr.PostOff+entry.PostOffset); err != nil {
			return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
				"reading postings for term %q: %v", entry.Term, err)
		}
		var postings index.PostingList
		if err := json.Unmarshal(block, &postings); err != nil {
			return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
				"parsing postings for term %q: %v", entry.Term, err)
		}
		if len(postings) != entry.DocFreq {
			return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
				"term %q has %d postings, dictionary says %d", entry.Term, len(postings), entry.DocFreq)
		}
		for _, p := range postings {
			if _, ok := docs[p.DocID]; !ok {
				return nil, nil, apperrors.Newf(apperrors.ErrIndexCorrupt,
					"term %q references unknown document %q", entry.Term, p.DocID)
			}
		}
		terms[entry.Term] = postings
	}
	return terms, docs, nil
}

func writeJSON(finalPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(finalPath), err)
	}
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(finalPath), err)
	}
	return os.Rename(tmpPath, finalPath)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
