package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
)

func TestSplit_NoSeparatorsFallsBackToCharacters(t *testing.T) {
	text := strings.Repeat("abcdefghij", 200) // 2000 chars, no separators

	chunks, err := Split(text, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	want := []string{text[0:800], text[600:1400], text[1200:2000]}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected text[%d:%d]", i, i*600, i*600+800)
		}
	}

	// Chunk 1 shares 200 characters with each neighbor.
	if !strings.HasSuffix(chunks[0], chunks[1][:200]) {
		t.Error("expected chunk 1 to start with the last 200 chars of chunk 0")
	}
	if !strings.HasPrefix(chunks[2], chunks[1][600:]) {
		t.Error("expected chunk 2 to start with the last 200 chars of chunk 1")
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	text := "Hello world. This is short."
	chunks, err := Split(text, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected %q, got %q", text, chunks[0])
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\n"} {
		chunks, err := Split(in, DefaultConfig())
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", in, len(chunks))
		}
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	a := strings.Repeat("a", 30)
	b := strings.Repeat("b", 30)

	chunks, err := Split(a+"\n\n"+b, Config{ChunkSize: 50, ChunkOverlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != a || chunks[1] != b {
		t.Errorf("expected split at paragraph break, got %q", chunks)
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence here. Third sentence here."
	chunks, err := Split(text, Config{ChunkSize: 30, ChunkOverlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "First sentence here" {
		t.Errorf("chunk 0: got %q", chunks[0])
	}
	if !strings.Contains(chunks[1], "Second") || !strings.Contains(chunks[2], "Third") {
		t.Errorf("expected one sentence per chunk, got %q", chunks)
	}
}

func TestSplit_SizeBoundAndOverlap(t *testing.T) {
	// Unique words so an overlap can only match where it was carried over.
	var words []string
	for i := range 300 {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	text := strings.Join(words, " ")
	cfg := Config{ChunkSize: 100, ChunkOverlap: 20}

	chunks, err := Split(text, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 5 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > cfg.ChunkSize {
			t.Errorf("chunk %d: %d chars exceeds %d", i, n, cfg.ChunkSize)
		}
	}

	for i := 0; i+1 < len(chunks); i++ {
		shared := sharedBoundary(chunks[i], chunks[i+1])
		// A carried tail that starts with a space loses it to trimming.
		if shared < cfg.ChunkOverlap-1 {
			t.Errorf("chunks %d/%d: overlap %d, expected at least %d", i, i+1, shared, cfg.ChunkOverlap-1)
		}
		if shared > cfg.ChunkOverlap {
			t.Errorf("chunks %d/%d: overlap %d exceeds %d", i, i+1, shared, cfg.ChunkOverlap)
		}
	}
}

func TestSplit_OverlapAcrossLongParagraphs(t *testing.T) {
	// Every paragraph is longer than the overlap, so no whole paragraph can be
	// carried into the next chunk.
	var paras []string
	for i := range 8 {
		paras = append(paras, strings.Repeat(string(rune('a'+i)), 300))
	}
	text := strings.Join(paras, "\n\n")
	cfg := DefaultConfig()

	chunks, err := Split(text, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 7 {
		t.Fatalf("expected 7 chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > cfg.ChunkSize {
			t.Errorf("chunk %d: %d chars exceeds %d", i, n, cfg.ChunkSize)
		}
		if !strings.Contains(text, c) {
			t.Errorf("chunk %d is not a substring of the input", i)
		}
	}
	for i := 0; i+1 < len(chunks); i++ {
		if shared := sharedBoundary(chunks[i], chunks[i+1]); shared != cfg.ChunkOverlap {
			t.Errorf("chunks %d/%d: expected %d shared chars, got %d", i, i+1, cfg.ChunkOverlap, shared)
		}
	}
	if !strings.HasPrefix(chunks[1], strings.Repeat("b", 200)+"\n\nccc") {
		t.Errorf("expected chunk 1 to continue from the tail of chunk 0, got %.30q", chunks[1])
	}
}

func TestSplit_OverlapIntoOversizedParagraph(t *testing.T) {
	// The middle paragraph is split on its own; its first chunk still picks up
	// the tail of the chunk before it.
	intro := strings.Repeat("i", 100)
	long := strings.Repeat("long sentence here. ", 10) // 200 chars
	outro := strings.Repeat("o", 60)
	text := intro + "\n\n" + long + "\n\n" + outro
	cfg := Config{ChunkSize: 120, ChunkOverlap: 30}

	chunks, err := Split(text, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		a, b := chunks[i], chunks[i+1]
		want := min(cfg.ChunkOverlap, len(a), len(b)) - 1
		if shared := sharedBoundary(a, b); shared < want {
			t.Errorf("chunks %d/%d: overlap %d, expected at least %d", i, i+1, shared, want)
		}
	}
}

func TestSplit_MultibyteCharacters(t *testing.T) {
	text := strings.Repeat("é", 250)
	chunks, err := Split(text, Config{ChunkSize: 100, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d: %d chars exceeds 100", i, n)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", DefaultConfig(), true},
		{"zero overlap", Config{ChunkSize: 10, ChunkOverlap: 0}, true},
		{"zero size", Config{ChunkSize: 0, ChunkOverlap: 0}, false},
		{"negative overlap", Config{ChunkSize: 100, ChunkOverlap: -1}, false},
		{"overlap equals size", Config{ChunkSize: 100, ChunkOverlap: 100}, false},
		{"overlap exceeds size", Config{ChunkSize: 100, ChunkOverlap: 150}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				var cfgErr *errs.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
			}
		})
	}
}

func TestSplit_RejectsInvalidConfig(t *testing.T) {
	_, err := Split("some text", Config{ChunkSize: 10, ChunkOverlap: 10})
	var cfgErr *errs.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSplitDocuments_RejectsInvalidConfig(t *testing.T) {
	docs := []document.Document{{Content: "text", Metadata: document.Metadata{Source: "a.txt"}}}
	_, err := SplitDocuments(docs, Config{ChunkSize: 0, ChunkOverlap: 0})
	var cfgErr *errs.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestSplitDocuments_ContinuousChunkIndex(t *testing.T) {
	docs := []document.Document{
		{
			Content:  strings.Repeat("abcdefghij", 200),
			Metadata: document.Metadata{Source: "a.txt"},
		},
		{
			Content:  "short page",
			Metadata: document.Metadata{Source: "b.pdf", Page: 2},
		},
	}

	chunks, err := SplitDocuments(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Metadata.ChunkIndex != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Metadata.ChunkIndex)
		}
	}
	for i := range 3 {
		if chunks[i].Metadata.Source != "a.txt" {
			t.Errorf("chunk %d: expected source a.txt, got %q", i, chunks[i].Metadata.Source)
		}
	}
	last := chunks[3]
	if last.Metadata.Source != "b.pdf" || last.Metadata.Page != 2 {
		t.Errorf("expected metadata carried from second document, got %+v", last.Metadata)
	}
	if last.Content != "short page" {
		t.Errorf("expected %q, got %q", "short page", last.Content)
	}
}

func TestSplitDocuments_SkipsEmptyDocuments(t *testing.T) {
	docs := []document.Document{
		{Content: "", Metadata: document.Metadata{Source: "blank.pdf", Page: 1}},
		{Content: "page two", Metadata: document.Metadata{Source: "blank.pdf", Page: 2}},
	}
	chunks, err := SplitDocuments(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.ChunkIndex != 0 || chunks[0].Metadata.Page != 2 {
		t.Errorf("unexpected metadata %+v", chunks[0].Metadata)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 800), 200},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%d chars): expected %d, got %d", len(tt.in), tt.want, got)
		}
	}
}

// sharedBoundary returns the length of the longest suffix of a that is also a prefix of b.
func sharedBoundary(a, b string) int {
	maxLen := min(len(a), len(b))
	for n := maxLen; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}
