package media

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

func TestWrapText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in    string
		width int
		want  []string
	}{
		{"", 25, nil},
		{"ЦБ СНИЗИЛ СТАВКУ", 25, []string{"ЦБ СНИЗИЛ СТАВКУ"}},
		{"BITCOIN SLIDES AS TRADERS BRACE FOR FED DECISION", 25, []string{"BITCOIN SLIDES AS TRADERS", "BRACE FOR FED DECISION"}},
		{"ONE   TWO\tTHREE", 7, []string{"ONE TWO", "THREE"}},
		{"SUPERCALIFRAGILISTIC", 8, []string{"SUPERCAL", "IFRAGILI", "STIC"}},
	}

	for _, tc := range cases {
		got := wrapText(tc.in, tc.width)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("wrapText(%q, %d): unexpected %q", tc.in, tc.width, got)
		}
		for _, line := range got {
			if utf8.RuneCountInString(line) > tc.width {
				t.Fatalf("line %q exceeds width %d", line, tc.width)
			}
		}
	}
}
