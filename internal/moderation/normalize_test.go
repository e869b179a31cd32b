package moderation

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"FR33 N1TRO!!!", "free nltro"},
		{"c4sh...m0ney", "cash money"},
		{"  spaced   out  ", "spaced out"},
		{"", ""},
		{"!!!", ""},
		{"keep 2 6 7 8 9", "keep 2 6 7 8 9"},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	inputs := []string{"Hello, World!", "FR33 N1TRO", "plain text", "d1sc0rd-g1ft.example"}
	for _, in := range inputs {
		once := NormalizeText(in)
		twice := NormalizeText(once)
		if once != twice {
			t.Fatalf("normalization not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
