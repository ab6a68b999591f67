package pages

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts markdown source text into an HTML fragment.
type Renderer interface {
	Render(source []byte) ([]byte, error)
}

// RenderFunc is an adapter that allows the use of ordinary functions as a [Renderer].
type RenderFunc func(source []byte) ([]byte, error)

func (f RenderFunc) Render(source []byte) ([]byte, error) {
	return f(source)
}

// Goldmark renders CommonMark with the GitHub flavoured extensions.
// Raw HTML in the source is not passed through.
type Goldmark struct {
	md goldmark.Markdown
}

func NewGoldmark() *Goldmark {
	return &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

func (g *Goldmark) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.md.Convert(source, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
