package main

import "testing"

func TestCanonicalizeNick(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Foo", "foo"},
		{"FOO", "foo"},
		{"foo", "foo"},
		{"Foo[Bar]", "foo{bar}"},
		{"Foo\\Bar", "foo|bar"},
		{"Foo^", "foo~"},
		{"already_lower", "already_lower"},
	}

	for _, tt := range tests {
		if got := canonicalizeNick(tt.in); got != tt.want {
			t.Errorf("canonicalizeNick(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanonicalizeChannel(t *testing.T) {
	if got := canonicalizeChannel("#Foo"); got != "#foo" {
		t.Errorf("canonicalizeChannel(#Foo) = %q, want #foo", got)
	}
}

func TestNickEqualityUnderFold(t *testing.T) {
	a := canonicalizeNick("Alice[1]")
	b := canonicalizeNick("alice{1}")
	if a != b {
		t.Errorf("expected fold equality, got %q != %q", a, b)
	}
}
