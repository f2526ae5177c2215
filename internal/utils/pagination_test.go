package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"250", 0, 250},
		{"-7", 1, -7},
		{"007", 99, 7},
		// anything unparsable keeps the default, including the empty
		// string a missing query parameter produces
		{"", 3, 3},
		{"12h", 5, 5},
		// Atoi does not trim
		{"4 ", 8, 8},
		{"99999999999999999999", 6, 6},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestClampInt(t *testing.T) {
	cases := []struct {
		v, lo, hi int
		want      int
	}{
		// inside the range
		{7, 1, 100, 7},
		// at the bounds
		{1, 1, 100, 1},
		{100, 1, 100, 100},
		// clamped
		{0, 1, 100, 1},
		{500, 1, 100, 100},
		{-3, 0, 168, 0},
		// degenerate range collapses to it
		{42, 5, 5, 5},
	}

	for _, tc := range cases {
		if got := ClampInt(tc.v, tc.lo, tc.hi); got != tc.want {
			t.Fatalf("ClampInt(%d, %d, %d) = %d; want %d", tc.v, tc.lo, tc.hi, got, tc.want)
		}
	}
}
