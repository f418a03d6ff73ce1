package transform

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OffloadImages re-hosts every image reference in html through upload and
// substitutes the returned destination URL. Sources matching any skip
// pattern (already hosted by the destination) are left untouched. After
// each image, progress receives (current, total). Uploads run one at a
// time; an error from upload aborts the whole rewrite, so adapters with a
// keep-broken-URL policy must absorb failures inside their UploadFunc.
func OffloadImages(ctx context.Context, html string, upload UploadFunc, skip []*regexp.Regexp, progress ProgressFunc) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var pending []*goquery.Selection
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		if skipped(src, skip) {
			return
		}
		pending = append(pending, s)
	})

	total := len(pending)
	for i, s := range pending {
		src, _ := s.Attr("src")
		hosted, err := upload(ctx, src)
		if err != nil {
			return "", err
		}
		s.SetAttr("src", hosted)
		if progress != nil {
			progress(i+1, total)
		}
	}

	return doc.Find("body").Html()
}

// CountImages returns how many images OffloadImages would upload, so
// callers can report a total before the first upload finishes.
func CountImages(html string, skip []*regexp.Regexp) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, err
	}
	n := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if ok && src != "" && !skipped(src, skip) {
			n++
		}
	})
	return n, nil
}

func skipped(src string, skip []*regexp.Regexp) bool {
	for _, re := range skip {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}

// IsDataURI reports whether an image source carries embedded binary data
// instead of a remote URL.
func IsDataURI(src string) bool {
	return strings.HasPrefix(src, "data:")
}
