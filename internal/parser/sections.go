package parser

import (
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

type heading struct {
	title string
	level int
}

// sectionBuilder groups block text under the most recent heading and emits
// one document per section that has body text.
type sectionBuilder struct {
	source   string
	fallback string // Section label for text before the first heading.
	stack    []heading
	text     strings.Builder
	docs     []document.Document
}

func (b *sectionBuilder) heading(level int, title string) {
	b.flush()
	for len(b.stack) > 0 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	b.stack = append(b.stack, heading{title: title, level: level})
}

func (b *sectionBuilder) block(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *sectionBuilder) flush() {
	body := strings.TrimSpace(b.text.String())
	b.text.Reset()
	if body == "" {
		return
	}

	section := b.fallback
	content := body
	if len(b.stack) > 0 {
		titles := make([]string, len(b.stack))
		for i, h := range b.stack {
			titles[i] = h.title
		}
		section = strings.Join(titles, " > ")
		content = b.stack[len(b.stack)-1].title + "\n\n" + body
	}

	b.docs = append(b.docs, document.Document{
		Content:  content,
		Metadata: document.Metadata{Source: b.source, Section: section},
	})
}

func (b *sectionBuilder) documents() []document.Document {
	b.flush()
	return b.docs
}
