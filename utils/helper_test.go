package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundMoney(t *testing.T) {
	cases := []struct{ in, want string }{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"-3.335", "-3.34"},
		{"0", "0"},
	}
	for _, tc := range cases {
		if got := RoundMoney(d(tc.in)); !got.Equal(d(tc.want)) {
			t.Errorf("RoundMoney(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestRoundRate(t *testing.T) {
	if got := RoundRate(d("0.12345")); !got.Equal(d("0.1235")) {
		t.Errorf("RoundRate = %s, want 0.1235", got)
	}
}

func TestClampRate(t *testing.T) {
	if got := ClampRate(d("1.2")); !got.Equal(d("1")) {
		t.Errorf("ClampRate(1.2) = %s, want 1", got)
	}
	if got := ClampRate(d("-0.3")); !got.Equal(decimal.Zero) {
		t.Errorf("ClampRate(-0.3) = %s, want 0", got)
	}
	if got := ClampRate(d("0.35")); !got.Equal(d("0.35")) {
		t.Errorf("ClampRate(0.35) = %s, want 0.35", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Womens   TEE  ", "womens tee"},
		{"a\tb\n c", "a b c"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := CollapseWhitespace(tc.in); got != tc.want {
			t.Errorf("CollapseWhitespace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUniqueInts(t *testing.T) {
	got := UniqueInts([]int{3, 1, 3, 2, 1})
	want := map[int]bool{1: true, 2: true, 3: true}
	if len(got) != 3 {
		t.Fatalf("UniqueInts returned %v, want 3 distinct values", got)
	}
	for _, v := range got {
		if !want[v] {
			t.Errorf("unexpected value %d in %v", v, got)
		}
	}
}
