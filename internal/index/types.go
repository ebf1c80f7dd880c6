// Package index builds and holds the inverted index: per-term postings
// lists, per-document statistics, IDF weights, and summary metadata. A built
// Index is immutable; rebuilds produce a fresh value that callers swap in
// atomically.
package index

import (
	"sort"
	"time"

	"github.com/gutensearch/gutensearch/internal/analyzer"
)

// Posting records one document containing a term.
type Posting struct {
	DocID     string `json:"d"`
	Frequency int    `json:"f"`
}

// PostingList is ordered ascending by DocID.
type PostingList []Posting

// DocInfo is the per-document statistics row kept alongside the postings.
type DocInfo struct {
	ID             string            `json:"doc_id"`
	Title          string            `json:"title"`
	Language       analyzer.Language `json:"language"`
	TokenCount     int               `json:"token_count"`
	RawLengthBytes int64             `json:"raw_length_bytes"`
	Preview        string            `json:"preview,omitempty"`
}

// Metadata is the summary snapshot recomputed on every build.
type Metadata struct {
	DocumentsCount        int       `json:"documents_count"`
	DocumentsSkipped      int       `json:"documents_skipped"`
	VocabularySize        int       `json:"vocabulary_size"`
	AverageDocumentLength float64   `json:"average_document_length"`
	CorpusSizeBytes       int64     `json:"corpus_size_bytes"`
	BuildTimestamp        time.Time `json:"build_timestamp"`
}

// Index is the fully built, immutable retrieval index.
type Index struct {
	terms map[string]PostingList
	idf   map[string]float64
	docs  map[string]DocInfo
	meta  Metadata
}

// FromParts assembles an Index from its constituent tables. Postings lists
// are re-sorted by DocID so an Index is deterministic regardless of how the
// parts were produced.
func FromParts(terms map[string]PostingList, idf map[string]float64, docs map[string]DocInfo, meta Metadata) *Index {
	for term, postings := range terms {
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		terms[term] = postings
	}
	meta.VocabularySize = len(terms)
	meta.DocumentsCount = len(docs)
	return &Index{terms: terms, idf: idf, docs: docs, meta: meta}
}

// Postings returns the postings list for a term, or nil when the term is not
// in the vocabulary. The returned slice must not be mutated.
func (ix *Index) Postings(term string) PostingList {
	return ix.terms[term]
}

// IDF returns the inverse document frequency for a term, zero when absent.
func (ix *Index) IDF(term string) float64 {
	return ix.idf[term]
}

// Doc returns the statistics row for a document.
func (ix *Index) Doc(id string) (DocInfo, bool) {
	d, ok := ix.docs[id]
	return d, ok
}

// Metadata returns the build summary.
func (ix *Index) Metadata() Metadata {
	return ix.meta
}

// DocumentFrequency returns the number of documents containing the term.
func (ix *Index) DocumentFrequency(term string) int {
	return len(ix.terms[term])
}

// Vocabulary returns all indexed terms in lexical order.
func (ix *Index) Vocabulary() []string {
	terms := make([]string, 0, len(ix.terms))
	for term := range ix.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Documents returns all document rows ordered by ID.
func (ix *Index) Documents() []DocInfo {
	docs := make([]DocInfo, 0, len(ix.docs))
	for _, d := range ix.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// IDFTable returns a copy of the term to IDF map.
func (ix *Index) IDFTable() map[string]float64 {
	out := make(map[string]float64, len(ix.idf))
	for term, v := range ix.idf {
		out[term] = v
	}
	return out
}
