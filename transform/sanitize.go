package transform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Policy lists what Sanitize removes. Zero value removes nothing; the
// deny configuration is supplied per call, not hard-coded.
type Policy struct {
	// DropElements are CSS selectors whose matches are removed entirely.
	DropElements []string
	// DropAttributes are attribute names stripped from every element.
	DropAttributes []string
}

// DefaultPolicy strips the elements no destination accepts from pasted
// markup. Adapters extend it with their own custom-tag deny lists.
func DefaultPolicy() Policy {
	return Policy{
		DropElements:   []string{"script", "iframe", "svg", "object", "embed", "form"},
		DropAttributes: []string{"onclick", "onload", "onerror", "contenteditable"},
	}
}

// Extend returns a copy of p with extra selectors and attributes appended.
func (p Policy) Extend(elements, attributes []string) Policy {
	out := Policy{
		DropElements:   append(append([]string{}, p.DropElements...), elements...),
		DropAttributes: append(append([]string{}, p.DropAttributes...), attributes...),
	}
	return out
}

// Sanitize removes the policy's elements and attributes from html and
// returns the rewritten fragment.
func Sanitize(html string, p Policy) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, sel := range p.DropElements {
		doc.Find(sel).Remove()
	}
	if len(p.DropAttributes) > 0 {
		doc.Find("*").Each(func(_ int, s *goquery.Selection) {
			for _, attr := range p.DropAttributes {
				s.RemoveAttr(attr)
			}
		})
	}

	return doc.Find("body").Html()
}
