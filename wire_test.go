package main

import "testing"

func TestExtractLinesCRLF(t *testing.T) {
	lines, rest := extractLines([]byte("PING foo\r\nPONG bar\r\n"))
	if len(lines) != 2 || lines[0] != "PING foo" || lines[1] != "PONG bar" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no rest, got %q", rest)
	}
}

func TestExtractLinesPartial(t *testing.T) {
	lines, rest := extractLines([]byte("NICK foo\r\nUSER partial"))
	if len(lines) != 1 || lines[0] != "NICK foo" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if string(rest) != "USER partial" {
		t.Fatalf("unexpected rest: %q", rest)
	}
}

func TestExtractLinesBareLF(t *testing.T) {
	lines, _ := extractLines([]byte("PING foo\n"))
	if len(lines) != 1 || lines[0] != "PING foo" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}

func TestTokenizeSimple(t *testing.T) {
	msg, ok := tokenize("NICK alice")
	if !ok || msg.Command != "NICK" || len(msg.Params) != 1 || msg.Params[0] != "alice" {
		t.Fatalf("unexpected: %+v ok=%v", msg, ok)
	}
}

func TestTokenizeTrailing(t *testing.T) {
	msg, ok := tokenize("PRIVMSG #chan :hello there world")
	if !ok {
		t.Fatal("expected ok")
	}
	if msg.Command != "PRIVMSG" {
		t.Fatalf("unexpected command: %q", msg.Command)
	}
	if len(msg.Params) != 2 || msg.Params[0] != "#chan" || msg.Params[1] != "hello there world" {
		t.Fatalf("unexpected params: %#v", msg.Params)
	}
}

func TestTokenizeLeadingColon(t *testing.T) {
	msg, ok := tokenize("USER :whole rest is one param")
	if !ok || len(msg.Params) != 1 || msg.Params[0] != "whole rest is one param" {
		t.Fatalf("unexpected: %+v ok=%v", msg, ok)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if _, ok := tokenize(""); ok {
		t.Fatal("expected not ok for empty line")
	}
}

func TestTokenizeUppercasesCommand(t *testing.T) {
	msg, ok := tokenize("nick alice")
	if !ok || msg.Command != "NICK" {
		t.Fatalf("expected uppercased command, got %q ok=%v", msg.Command, ok)
	}
}
