package transform

import (
	"strings"
	"testing"

	"crosspost/types"
)

func TestEnsureHTMLFromMarkdown(t *testing.T) {
	a := &types.Article{Title: "T", Markdown: "# Heading\n\nsome *text*"}
	html, err := EnsureHTML(a)
	if err != nil {
		t.Fatalf("EnsureHTML: %v", err)
	}
	if !strings.Contains(html, "<h1") || !strings.Contains(html, "<em>text</em>") {
		t.Fatalf("unexpected derived html: %s", html)
	}
}

func TestEnsureMarkdownFromHTML(t *testing.T) {
	a := &types.Article{Title: "T", HTML: "<h2>Sub</h2><p>body</p>"}
	mdown, err := EnsureMarkdown(a)
	if err != nil {
		t.Fatalf("EnsureMarkdown: %v", err)
	}
	if !strings.Contains(mdown, "## Sub") {
		t.Fatalf("unexpected derived markdown: %q", mdown)
	}
}

func TestEnsureHTMLRejectsEmptyArticle(t *testing.T) {
	if _, err := EnsureHTML(&types.Article{Title: "empty"}); err == nil {
		t.Fatal("expected error for article with no content")
	}
	if _, err := EnsureMarkdown(&types.Article{Title: "empty"}); err == nil {
		t.Fatal("expected error for article with no content")
	}
}
