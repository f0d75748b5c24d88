package document

import "strconv"

// Metadata describes where a piece of text came from.
type Metadata struct {
	Source     string `json:"source"`              // File base name
	FilePath   string `json:"file_path,omitempty"` // Path the file was loaded from
	Page       int    `json:"page,omitempty"`      // 1-based page (0 if N/A)
	Section    string `json:"section,omitempty"`   // Heading or row range for structured formats
	DocID      string `json:"doc_id,omitempty"`    // Content-hash identifier of the upload
	ChunkIndex int    `json:"chunk_index"`         // Sequence number within one chunking batch
}

// PageLabel renders the page for prompts and citations.
func (m Metadata) PageLabel() string {
	if m.Page <= 0 {
		return "N/A"
	}
	return strconv.Itoa(m.Page)
}

// SourceLabel returns the source name, or "Unknown" when unset.
func (m Metadata) SourceLabel() string {
	if m.Source == "" {
		return "Unknown"
	}
	return m.Source
}

// Document is the full text of one loaded unit (a file, a page, or a section).
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded piece of a Document, ready for embedding.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}
