package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/errs"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Maximum chunk length in characters.
	ChunkOverlap int // Characters carried over between consecutive chunks.
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    800,
		ChunkOverlap: 200,
	}
}

// Validate rejects parameters the splitter cannot honor.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errs.Configf("chunk_size", "must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return errs.Configf("chunk_overlap", "must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return errs.Configf("chunk_overlap", "must be smaller than chunk_size (%d >= %d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// separators in priority order: paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split breaks text into chunks of at most cfg.ChunkSize characters,
// preferring paragraph, then line, sentence and word boundaries. Adjacent
// chunks share cfg.ChunkOverlap characters of the original text, or fewer when
// a chunk is shorter than that.
func Split(text string, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return splitText(text, cfg), nil
}

func splitText(text string, cfg Config) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s := &splitter{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	s.split(text, separators)
	return s.chunks
}

// SplitDocuments chunks every document, copying its metadata onto each chunk.
// ChunkIndex runs from 0 across the whole batch.
func SplitDocuments(docs []document.Document, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []document.Chunk
	for _, doc := range docs {
		for _, part := range splitText(doc.Content, cfg) {
			meta := doc.Metadata
			meta.ChunkIndex = len(chunks)
			chunks = append(chunks, document.Chunk{Content: part, Metadata: meta})
		}
	}
	return chunks, nil
}

type splitter struct {
	size    int
	overlap int
	chunks  []string
}

// split picks the first separator present in text, merges the small pieces
// and recurses into pieces that are still too long.
func (s *splitter) split(text string, seps []string) {
	sep := seps[len(seps)-1]
	var rest []string
	for i, cand := range seps {
		if cand == "" {
			sep = ""
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	var small []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			s.merge(small)
			small = nil
		}
		if len(rest) == 0 {
			s.emit([]string{piece})
			continue
		}
		s.split(piece, rest)
	}
	if len(small) > 0 {
		s.merge(small)
	}
}

// merge packs pieces greedily into chunks of at most s.size characters. When a
// chunk is emitted, pieces are dropped from its front until at most s.overlap
// characters remain; those become the start of the next chunk. If whole
// pieces cannot supply the overlap, the next chunk starts with the emitted
// chunk's last characters instead.
func (s *splitter) merge(pieces []string) {
	var current []string
	total := 0
	if last := len(s.chunks) - 1; last >= 0 {
		// Continue from whatever the previous group emitted.
		if seed := s.seed(s.chunks[last], runeLen(pieces[0])); seed != "" {
			current, total = []string{seed}, runeLen(seed)
		}
	}
	fresh := false

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.size && len(current) > 0 {
			if fresh {
				s.emit(current)
			}
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
			if fresh {
				if seed := s.seed(s.chunks[len(s.chunks)-1], n); runeLen(seed) > total {
					current, total = []string{seed}, runeLen(seed)
				}
			}
			fresh = false
		}
		current = append(current, piece)
		total += n
		if strings.TrimSpace(piece) != "" {
			fresh = true
		}
	}
	if fresh {
		s.emit(current)
	}
}

// seed returns the tail of prev that the next chunk should start with: the
// last min(overlap, len(prev)) characters, shortened so a following piece of
// next characters still fits.
func (s *splitter) seed(prev string, next int) string {
	want := min(s.overlap, s.size-next)
	r := []rune(prev)
	if want <= 0 {
		return ""
	}
	if want >= len(r) {
		return prev
	}
	return string(r[len(r)-want:])
}

func (s *splitter) emit(parts []string) {
	joined := strings.TrimSpace(strings.Join(parts, ""))
	if joined != "" {
		s.chunks = append(s.chunks, joined)
	}
}

// splitKeepSeparator splits text on sep, keeping each separator attached to the
// start of the piece that follows it. An empty sep splits into characters.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
