package transform

import (
	"strings"
	"testing"
)

func TestIsFormula(t *testing.T) {
	cases := []struct {
		name string
		span string
		want bool
	}{
		{"einstein", "E=mc^2", true},
		{"tex escape", `\frac{a}{b}`, true},
		{"greek", "Δx > 0", true},
		{"currency", "5", false},
		{"emphasis words", "really important", false},
		{"price range", "10 to 20 dollars", false},
		{"integral glyph", "∫f(x)dx", true},
		{"empty", "  ", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsFormula(c.span); got != c.want {
				t.Fatalf("IsFormula(%q) = %v; want %v", c.span, got, c.want)
			}
		})
	}
}

func TestRenderFormulasBlock(t *testing.T) {
	html := "<p>intro</p>$$E=mc^2$$<p>outro</p>"
	out := RenderFormulas(html, "https://render.test/?tex=")

	if strings.Contains(out, "$$") {
		t.Fatalf("block span not rewritten: %s", out)
	}
	if !strings.Contains(out, `<p style="text-align:center">`) {
		t.Fatalf("block formula not centered: %s", out)
	}
	if !strings.Contains(out, "https://render.test/?tex=E%3Dmc%5E2") {
		t.Fatalf("renderer URL missing encoded tex: %s", out)
	}
}

func TestRenderFormulasInline(t *testing.T) {
	out := RenderFormulas("solve $x^2+1=0$ first", "https://render.test/?tex=")
	if !strings.Contains(out, `vertical-align:middle`) {
		t.Fatalf("inline formula not rewritten: %s", out)
	}
}

func TestRenderFormulasLeavesCurrencyAlone(t *testing.T) {
	in := "it costs $5$ or so, $maybe$ more"
	if out := RenderFormulas(in, "https://render.test/?tex="); out != in {
		t.Fatalf("currency/emphasis rewritten: %s", out)
	}
}

func TestRenderFormulasCurrencyBeforeFormula(t *testing.T) {
	// The currency dollar pairs with the formula's opening delimiter in the
	// first candidate span; the formula after it must still be found.
	out := RenderFormulas("costs $5. Then $a=b$ holds", "https://render.test/?tex=")
	if !strings.Contains(out, "costs $5.") {
		t.Fatalf("currency text altered: %s", out)
	}
	if !strings.Contains(out, "https://render.test/?tex=a%3Db") {
		t.Fatalf("formula after currency dollar not rendered: %s", out)
	}
	if strings.Contains(out, "$a=b$") {
		t.Fatalf("formula span left unrewritten: %s", out)
	}
}
