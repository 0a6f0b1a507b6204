package diff

import (
	"html"
	"regexp"
	"testing"
)

var (
	struckRe = regexp.MustCompile(`<s>.*?</s>`)
	tagRe    = regexp.MustCompile(`</?b>`)
)

// newTextOf strips removed spans and markers, leaving the reconstructed new text.
func newTextOf(rendered string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(struckRe.ReplaceAllString(rendered, ""), ""))
}

func TestRenderIdentity(t *testing.T) {
	cases := []string{"", "hello", "a < b & c > d", "привет, мир"}
	for _, tc := range cases {
		if got := Render(tc, tc); got != html.EscapeString(tc) {
			t.Fatalf("Render(%q, %q) = %q", tc, tc, got)
		}
	}
}

func TestRenderAppend(t *testing.T) {
	got := Render("hello", "hello world")
	if got != "hello<b> world</b>" {
		t.Fatalf("unexpected diff: %q", got)
	}
}

func TestRenderReplaceAndDelete(t *testing.T) {
	if got := Render("cat", "cut"); got != "c<s>a</s><b>u</b>t" {
		t.Fatalf("unexpected replace diff: %q", got)
	}
	if got := Render("hello world", "hello"); got != "hello<s> world</s>" {
		t.Fatalf("unexpected delete diff: %q", got)
	}
	if got := Render("", "new"); got != "<b>new</b>" {
		t.Fatalf("unexpected insert-only diff: %q", got)
	}
	if got := Render("old", ""); got != "<s>old</s>" {
		t.Fatalf("unexpected delete-only diff: %q", got)
	}
}

func TestRenderEscapesUserText(t *testing.T) {
	got := Render("<i>x</i>", "<i>y</i>")
	want := "&lt;i&gt;<s>x</s><b>y</b>&lt;/i&gt;"
	if got != want {
		t.Fatalf("unexpected escaped diff:\n got %q\nwant %q", got, want)
	}
}

func TestRenderReconstructsNewText(t *testing.T) {
	pairs := [][2]string{
		{"hello", "hello world"},
		{"the quick brown fox", "a quick red fox jumps"},
		{"Встречаемся в 10", "Встречаемся завтра в 11!"},
		{"x & y", "x && y <3"},
		{"", ""},
		{"abc", ""},
	}
	for _, p := range pairs {
		got := newTextOf(Render(p[0], p[1]))
		if got != p[1] {
			t.Fatalf("round trip %q -> %q produced %q", p[0], p[1], got)
		}
	}
}
