package excel

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// normalize quita tildes, pasa a minúsculas y une palabras con "_":
// "Factura Relacionada" → "factura_relacionada", "Descripción" → "descripcion".
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	out = folder.String(out)
	return strings.Join(strings.Fields(out), "_")
}
