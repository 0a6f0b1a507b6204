// Package diff renders an inline HTML diff between two versions of a message.
package diff

import (
	"html"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Render marks removed spans with <s> and inserted spans with <b>. Unchanged
// text passes through escaped.
func Render(oldText, newText string) string {
	if oldText == newText {
		return html.EscapeString(newText)
	}

	a := splitRunes(oldText)
	b := splitRunes(newText)
	m := difflib.NewMatcher(a, b)

	var out strings.Builder
	for _, op := range m.GetOpCodes() {
		oldPart := html.EscapeString(strings.Join(a[op.I1:op.I2], ""))
		newPart := html.EscapeString(strings.Join(b[op.J1:op.J2], ""))
		switch op.Tag {
		case 'e':
			out.WriteString(oldPart)
		case 'r':
			if oldPart != "" {
				out.WriteString("<s>" + oldPart + "</s>")
			}
			if newPart != "" {
				out.WriteString("<b>" + newPart + "</b>")
			}
		case 'd':
			out.WriteString("<s>" + oldPart + "</s>")
		case 'i':
			out.WriteString("<b>" + newPart + "</b>")
		}
	}
	return out.String()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
