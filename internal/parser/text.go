package parser

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docqa/internal/document"
)

// TextParser handles plain text files. The whole file becomes one document.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8 text", filename)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	return []document.Document{{
		Content:  text,
		Metadata: document.Metadata{Source: filename},
	}}, nil
}
