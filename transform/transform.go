// Package transform rewrites article markup into the shape one destination
// accepts: disallowed elements stripped, formulas rendered, images re-hosted
// on the destination, styles inlined. The only network access is the
// caller-supplied image upload function; every other step is a pure
// string/DOM rewrite.
package transform

import (
	"context"
	"regexp"
)

// UploadFunc uploads one image source (remote URL or data URI) and returns
// the destination-hosted URL. Whether a failed upload aborts the transform
// or degrades to the original URL is the adapter's policy: return an error
// to abort, or swallow the failure and return the original source to
// degrade.
type UploadFunc func(ctx context.Context, src string) (string, error)

// ProgressFunc receives (current, total) after each image is handled.
type ProgressFunc func(current, total int)

// Pipeline is one destination's full markup rewrite, applied in a fixed
// order: sanitize, render formulas, offload images, inline styles. Formula
// rendering runs before the image pipeline so rendered formulas get
// re-hosted like any other image.
type Pipeline struct {
	Policy       Policy
	RendererURL  string
	SkipPatterns []*regexp.Regexp
	Stylesheet   Stylesheet
	Upload       UploadFunc
	Progress     ProgressFunc
}

// Apply runs the pipeline over html.
func (p Pipeline) Apply(ctx context.Context, html string) (string, error) {
	out, err := Sanitize(html, p.Policy)
	if err != nil {
		return "", err
	}
	if p.RendererURL != "" {
		out = RenderFormulas(out, p.RendererURL)
	}
	if p.Upload != nil {
		out, err = OffloadImages(ctx, out, p.Upload, p.SkipPatterns, p.Progress)
		if err != nil {
			return "", err
		}
	}
	if p.Stylesheet != nil {
		out, err = InlineStyles(out, p.Stylesheet)
		if err != nil {
			return "", err
		}
	}
	return out, nil
}
