package components

import (
	"context"
	"embed"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

//go:embed static/*
var EmbedStatic embed.FS

// Stylesheet returns the embedded stylesheet that is injected into every document.
func Stylesheet() string {
	css, err := EmbedStatic.ReadFile("static/styles.css")
	if err != nil {
		panic(fmt.Sprintf("embedded stylesheet is missing: %v", err))
	}
	return string(css)
}

// DocumentProps contains everything that surrounds the page body.
type DocumentProps struct {
	Title       string
	Description string
	Stylesheet  string
}

// Document is the layout that wraps every page. Its body is the children component, see
// [templ.WithChildren]. The body is expected to be indented already and to end with a newline.
//
// # Example:
//
//	ctx = templ.WithChildren(ctx, templ.Raw(fragment))
//	err := components.Document(props).Render(ctx, w)
func Document(props DocumentProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, documentHead(props)); err != nil {
			return err
		}
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body>\n</html>\n")
		return err
	})
}

func documentHead(props DocumentProps) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("    <title>" + templ.EscapeString(props.Title) + "</title>\n")
	b.WriteString("    <meta charset=\"utf-8\">\n")
	b.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if len(props.Description) > 0 {
		b.WriteString("    <meta name=\"description\" content=\"" + templ.EscapeString(props.Description) + "\">\n")
	}
	if len(props.Stylesheet) > 0 {
		b.WriteString("    <style>\n")
		b.WriteString(props.Stylesheet)
		if !strings.HasSuffix(props.Stylesheet, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("    </style>\n")
	}
	b.WriteString("</head>\n\n<body>\n")
	return b.String()
}
