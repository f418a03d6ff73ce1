package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Formula spans are rewritten into <img> references to a remote renderer.
// Dollar delimiters are also how people write prices and emphasis, so a
// span only counts as a formula when the classifier finds actual
// mathematical content inside it.

var (
	blockFormulaRe  = regexp.MustCompile(`\$\$([^$]+)\$\$`)
	inlineFormulaRe = regexp.MustCompile(`\$([^$\n]+)\$`)

	// TeX escape sequences: \frac, \alpha, \sum ...
	texEscapeRe = regexp.MustCompile(`\\[a-zA-Z]+`)
)

const (
	greekGlyphs    = "αβγδεζηθικλμνξοπρστυφχψωΓΔΘΛΞΠΣΦΨΩ"
	operatorGlyphs = "=+^_×÷±≤≥≠≈∑∏∫√∞→"
)

// IsFormula reports whether a dollar-delimited span holds real mathematics
// rather than currency or emphasis.
func IsFormula(span string) bool {
	s := strings.TrimSpace(span)
	if s == "" {
		return false
	}
	if texEscapeRe.MatchString(s) {
		return true
	}
	if strings.ContainsAny(s, greekGlyphs) {
		return true
	}
	return strings.ContainsAny(s, operatorGlyphs)
}

// RenderFormulas rewrites $$...$$ block spans and $...$ inline spans that
// pass the classifier into <img> tags pointing at rendererURL. Block
// formulas are centered on their own line. Non-formula spans are left
// untouched.
func RenderFormulas(html, rendererURL string) string {
	out := blockFormulaRe.ReplaceAllStringFunc(html, func(m string) string {
		tex := blockFormulaRe.FindStringSubmatch(m)[1]
		if !IsFormula(tex) {
			return m
		}
		return fmt.Sprintf(
			`<p style="text-align:center"><img src="%s" alt="%s"/></p>`,
			formulaURL(rendererURL, tex), escapeAlt(tex))
	})
	return renderInline(out, rendererURL)
}

// renderInline walks $...$ candidate spans by hand. A rejected span may hide
// a real formula behind its opening dollar ("costs $5. Then $a=b$" pairs the
// currency dollar with the formula's opener), so after a rejection the scan
// resumes one character past the rejected span's opening delimiter.
func renderInline(html, rendererURL string) string {
	var b strings.Builder
	rest := html
	for {
		loc := inlineFormulaRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			b.WriteString(rest)
			return b.String()
		}
		tex := rest[loc[2]:loc[3]]
		if !IsFormula(tex) {
			b.WriteString(rest[:loc[0]+1])
			rest = rest[loc[0]+1:]
			continue
		}
		b.WriteString(rest[:loc[0]])
		fmt.Fprintf(&b, `<img style="vertical-align:middle" src="%s" alt="%s"/>`,
			formulaURL(rendererURL, tex), escapeAlt(tex))
		rest = rest[loc[1]:]
	}
}

func formulaURL(rendererURL, tex string) string {
	return rendererURL + url.QueryEscape(strings.TrimSpace(tex))
}

func escapeAlt(tex string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")
	return r.Replace(strings.TrimSpace(tex))
}
