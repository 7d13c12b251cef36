package main

import "testing"

func TestIsValidNick(t *testing.T) {
	valid := []string{"foo", "Foo_Bar", "[test]", "a", "a-b-c", "^foo"}
	for _, n := range valid {
		if !isValidNick(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}

	invalid := []string{"", "1abc", "-abc", "foo bar", "foo!bar"}
	for _, n := range invalid {
		if isValidNick(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}

func TestIsValidChannel(t *testing.T) {
	valid := []string{"#foo", "&bar", "+baz", "!qux"}
	for _, n := range valid {
		if !isValidChannel(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}

	invalid := []string{"", "foo", "#foo bar", "#foo,bar", "#foo:bar"}
	for _, n := range invalid {
		if isValidChannel(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}
