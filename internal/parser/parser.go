package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
)

// Parser converts raw document bytes into Documents.
type Parser interface {
	Parse(r io.Reader, filename string) ([]document.Document, error)
}

// Kind is a supported document format.
type Kind int

const (
	KindText Kind = iota + 1
	KindPDF
	KindDOCX
	KindMarkdown
	KindHTML
	KindCSV
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindMarkdown:
		return "markdown"
	case KindHTML:
		return "html"
	case KindCSV:
		return "csv"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = []string{".txt", ".pdf", ".docx", ".md", ".markdown", ".html", ".htm", ".csv"}

// Options tunes individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// KindFor maps a filename to its document kind.
func KindFor(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return KindText, nil
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindDOCX, nil
	case ".md", ".markdown":
		return KindMarkdown, nil
	case ".html", ".htm":
		return KindHTML, nil
	case ".csv":
		return KindCSV, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return 0, errs.Configf("file_type", "unsupported file type %s; supported types: %s",
		ext, strings.Join(SupportedExtensions, ", "))
}

// Parser returns the parser for this kind.
func (k Kind) Parser(opts Options) Parser {
	switch k {
	case KindPDF:
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}
	case KindDOCX:
		return &DOCXParser{}
	case KindMarkdown:
		return &MarkdownParser{}
	case KindHTML:
		return &HTMLParser{}
	case KindCSV:
		return &CSVParser{}
	default:
		return &TextParser{}
	}
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	kind, err := KindFor(filename)
	if err != nil {
		return nil, err
	}
	return kind.Parser(opts), nil
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	_, err := KindFor(filename)
	return err == nil
}

// ParseBytes parses an in-memory upload and stamps the source name on every document.
func ParseBytes(r io.Reader, filename string, opts Options) ([]document.Document, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	docs, err := p.Parse(r, filename)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(filename)
	for i := range docs {
		docs[i].Metadata.Source = source
	}
	return docs, nil
}

// Load reads the file at path and returns its documents with source metadata.
func Load(path string, opts Options) ([]document.Document, error) {
	p, err := ForFile(path, opts)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	docs, err := p.Parse(f, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	for i := range docs {
		docs[i].Metadata.Source = name
		docs[i].Metadata.FilePath = path
	}
	return docs, nil
}

// LoadError records a file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// LoadAll loads every path. A failing file is reported in the second return
// value and does not stop the batch.
func LoadAll(paths []string, opts Options) ([]document.Document, []LoadError) {
	var docs []document.Document
	var failures []LoadError
	for _, path := range paths {
		d, err := Load(path, opts)
		if err != nil {
			failures = append(failures, LoadError{Path: path, Err: err})
			continue
		}
		docs = append(docs, d...)
	}
	return docs, failures
}
