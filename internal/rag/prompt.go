package rag

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/vectorindex"
)

// InsufficientInfoAnswer is returned when nothing relevant was retrieved, and
// is the sentence the model is told to use in the same situation.
const InsufficientInfoAnswer = "I don't have enough information to answer this question."

const PromptTemplate = `You are a helpful assistant that answers questions based on the provided context.
Use the following pieces of context to answer the question. If you don't know the answer based on the context, say "` + InsufficientInfoAnswer + `"

Always cite your sources by mentioning which document the information came from.

Context:
{context}

Question: {question}

Answer:`

const (
	contextSeparator = "\n\n---\n\n"
	previewLength    = 200
)

// FormatContext renders retrieved chunks as numbered, attributed blocks in
// retrieval order.
func FormatContext(results []vectorindex.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		md := r.Chunk.Metadata
		parts[i] = fmt.Sprintf("[Document %d - %s (Page %s)]:\n%s", i+1, md.SourceLabel(), md.PageLabel(), r.Chunk.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// BuildPrompt fills the template with the formatted context and question.
func BuildPrompt(context, question string) string {
	r := strings.NewReplacer("{context}", context, "{question}", question)
	return r.Replace(PromptTemplate)
}

// Source is one citation attached to an answer.
type Source struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    string `json:"page"`
}

// BuildSources returns one citation per retrieved chunk, in retrieval order.
func BuildSources(results []vectorindex.Result) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{
			Content: preview(r.Chunk.Content),
			Source:  r.Chunk.Metadata.SourceLabel(),
			Page:    r.Chunk.Metadata.PageLabel(),
		}
	}
	return out
}

// preview always carries the truncation marker, even for short chunks.
func preview(s string) string {
	r := []rune(s)
	if len(r) > previewLength {
		r = r[:previewLength]
	}
	return string(r) + "..."
}
