package pages

import (
	"errors"
	"strings"
)

// DefaultTitle is used for pages whose first line does not contain a title.
const DefaultTitle = "Default title"

var ErrNoTitle = errors.New("source has no title line")

// Title derives a page title from the first line of its markdown source: everything after the
// first space. "# Hello World" has the title "Hello World".
func Title(source string) (string, error) {
	first, _, _ := strings.Cut(source, "\n")
	first = strings.TrimSuffix(first, "\r")
	if len(source) == 0 {
		return "", ErrNoTitle
	}
	_, title, found := strings.Cut(first, " ")
	if !found {
		return "", ErrNoTitle
	}
	return title, nil
}

// TitleOrDefault returns [Title] or [DefaultTitle] if no title can be derived.
func TitleOrDefault(source string) string {
	title, err := Title(source)
	if err != nil {
		return DefaultTitle
	}
	return title
}

// Indent prefixes every line of the fragment with unit and terminates it with a newline, so the
// fragment nests inside the document body. A trailing newline does not produce an extra line.
func Indent(fragment string, unit string) string {
	if len(fragment) == 0 {
		return ""
	}
	fragment = strings.TrimSuffix(fragment, "\n")
	var b strings.Builder
	b.Grow(len(fragment) + strings.Count(fragment, "\n")*len(unit) + len(unit) + 1)
	for line := range strings.SplitSeq(fragment, "\n") {
		b.WriteString(unit)
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	return b.String()
}
