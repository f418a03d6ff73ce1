package transform

import (
	"bytes"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"crosspost/types"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// MarkdownToHTML converts markdown to an HTML fragment.
func MarkdownToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTMLToMarkdown converts an HTML fragment to markdown.
func HTMLToMarkdown(html string) (string, error) {
	out, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return out, nil
}

// EnsureHTML returns the article's HTML, deriving it from markdown when the
// author supplied markdown only.
func EnsureHTML(a *types.Article) (string, error) {
	if a.HTML != "" {
		return a.HTML, nil
	}
	if a.Markdown == "" {
		return "", fmt.Errorf("article %q has neither html nor markdown", a.Title)
	}
	return MarkdownToHTML(a.Markdown)
}

// EnsureMarkdown returns the article's markdown, deriving it from HTML when
// the author supplied HTML only.
func EnsureMarkdown(a *types.Article) (string, error) {
	if a.Markdown != "" {
		return a.Markdown, nil
	}
	if a.HTML == "" {
		return "", fmt.Errorf("article %q has neither html nor markdown", a.Title)
	}
	return HTMLToMarkdown(a.HTML)
}
