package transform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stylesheet maps CSS selectors to the style declarations inlined on every
// matching element. Destinations that drop <style> blocks and linked
// stylesheets only honor element-level style attributes.
type Stylesheet map[string]string

// InlineStyles wraps html in a container section and inlines the
// stylesheet's declarations onto matching elements. Existing style
// attributes keep precedence: the sheet's declarations are prepended so the
// author's own styling wins on conflict.
func InlineStyles(html string, sheet Stylesheet) (string, error) {
	wrapped := `<section class="crosspost-container">` + html + `</section>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapped))
	if err != nil {
		return "", err
	}

	for selector, style := range sheet {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if existing, ok := s.Attr("style"); ok && existing != "" {
				s.SetAttr("style", strings.TrimSuffix(style, ";")+";"+existing)
			} else {
				s.SetAttr("style", style)
			}
		})
	}

	return doc.Find("body").Html()
}
