package textutil

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "hyphenated", in: "T-Shirt", want: "TSHIRT"},
		{name: "spaces", in: "t shirt", want: "TSHIRT"},
		{name: "underscores", in: "T_SHIRT", want: "TSHIRT"},
		{name: "already normal", in: "HOODIE", want: "HOODIE"},
		{name: "digits kept", in: "Air Max 97", want: "AIRMAX97"},
		{name: "punctuation stripped", in: "Cap (Limited!)", want: "CAPLIMITED"},
		{name: "non ascii dropped", in: "Tête", want: "TTE"},
		{name: "empty", in: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeKey(tc.in); got != tc.want {
				t.Fatalf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
