package schtask

import "testing"

func TestQuoteRoundTrip(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"",
		"plain",
		"with space",
		`embedded "quotes" inside`,
		`""`,
		`trailing quote"`,
		`"leading quote`,
		"semi;colons; and $vars",
		`C:\Program Files\Python 3.11\python.exe`,
		"newline\nand\ttab",
	}
	for _, in := range inputs {
		quoted := Quote(in)
		got, err := Unquote(quoted)
		if err != nil {
			t.Fatalf("Unquote(Quote(%q)) error: %v", in, err)
		}
		if got != in {
			t.Fatalf("round trip of %q = %q", in, got)
		}
	}
}

func TestQuoteDoublesEmbeddedQuotes(t *testing.T) {
	t.Parallel()
	got := Quote(`say "hi"`)
	want := `"say ""hi"""`
	if got != want {
		t.Fatalf("Quote = %s, want %s", got, want)
	}
}

func TestUnquoteRejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{``, `"`, `unquoted`, `"dangling " quote"`, `"open`} {
		if _, err := Unquote(in); err == nil {
			t.Fatalf("Unquote(%q) expected error", in)
		}
	}
}
