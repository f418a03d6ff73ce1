// Package extractor pulls the main article out of raw page markup. It tries
// a priority-ordered list of strategies and falls through to the next one on
// failure.
package extractor

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"crosspost/types"
)

const minArticleTextLength = 140

// ErrNoArticle means no strategy could find readable article content.
var ErrNoArticle = errors.New("no readable article found")

type strategy struct {
	name string
	run  func(html string, pageURL *url.URL) (*types.ExtractedArticle, error)
}

var strategies = []strategy{
	{name: "readability", run: runReadability},
	{name: "heuristic", run: runHeuristic},
}

// ExtractArticle runs the strategies in priority order and returns the first
// hit. pageURL may be empty; it only improves relative link resolution.
func ExtractArticle(html, pageURL string) (*types.ExtractedArticle, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	for _, s := range strategies {
		article, err := s.run(html, parsed)
		if err != nil {
			log.Printf("extractor: %s strategy failed: %v", s.name, err)
			continue
		}
		article.Extractor = s.name
		return article, nil
	}
	return nil, ErrNoArticle
}

// IsArticleAvailable reports whether any strategy would succeed on the page.
func IsArticleAvailable(html string) bool {
	if readability.Check(strings.NewReader(html)) {
		return true
	}
	_, err := runHeuristic(html, &url.URL{})
	return err == nil
}

func runReadability(html string, pageURL *url.URL) (*types.ExtractedArticle, error) {
	parsed, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}
	if strings.TrimSpace(parsed.Content) == "" {
		return nil, errors.New("readability: empty content")
	}
	return &types.ExtractedArticle{
		Title:       parsed.Title,
		Content:     parsed.Content,
		TextContent: parsed.TextContent,
		Excerpt:     parsed.Excerpt,
		Images:      imageSources(parsed.Content),
	}, nil
}

// runHeuristic picks the <article> element, or failing that the densest
// content block, and requires a minimum amount of text.
func runHeuristic(html string, _ *url.URL) (*types.ExtractedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	block := doc.Find("article").First()
	if block.Length() == 0 {
		block = densestBlock(doc)
	}
	if block == nil || block.Length() == 0 {
		return nil, errors.New("no candidate content block")
	}
	text := strings.TrimSpace(block.Text())
	if len(text) < minArticleTextLength {
		return nil, fmt.Errorf("content block too short (%d chars)", len(text))
	}

	content, err := goquery.OuterHtml(block)
	if err != nil {
		return nil, fmt.Errorf("serializing content block: %w", err)
	}
	article := &types.ExtractedArticle{
		Title:       pageTitle(doc),
		Content:     content,
		TextContent: text,
		Images:      imageSources(content),
	}
	if len(text) > 200 {
		article.Excerpt = strings.TrimSpace(text[:200])
	}
	return article, nil
}

// densestBlock returns the div or section carrying the most text. Scanning
// stays shallow on purpose: nested wrappers share their text with the parent,
// so the outermost dense block wins.
func densestBlock(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLen := 0
	doc.Find("main, div, section").Each(func(_ int, sel *goquery.Selection) {
		l := len(strings.TrimSpace(sel.Text()))
		if l > bestLen {
			best = sel
			bestLen = l
		}
	})
	return best
}

func pageTitle(doc *goquery.Document) string {
	if t, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func imageSources(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if ok && src != "" && !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	})
	return out
}
