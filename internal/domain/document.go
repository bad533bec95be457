package domain

import "time"

// Document is one unit of crawled content: a single page or file from the
// target site. Documents are consumed by the chunker during a build and are
// not retained afterwards; only the chunks derived from them persist.
type Document struct {
	SourceURL string    `json:"url"`
	Text      string    `json:"text"`
	Path      string    `json:"path,omitempty"` // storage path of the raw original, if kept
	FetchedAt time.Time `json:"timestamp,omitempty"`
}

// Chunk is a bounded span of sentences from one document. It doubles as the
// metadata record persisted next to the vector index: the chunk at ordinal i
// in the metadata file corresponds to the vector at position i in the index.
type Chunk struct {
	Text         string    `json:"chunk_text"`
	SourceURL    string    `json:"source_url"`
	Timestamp    time.Time `json:"timestamp"`
	ChunkIndex   int       `json:"chunk_index"`
	Hash         string    `json:"hash,omitempty"`
	DocumentPath string    `json:"full_document_path,omitempty"`
}
