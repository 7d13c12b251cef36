package main

import (
	"strings"

	"github.com/horgh/irc"
)

// extractLines splits buf on CR LF or a bare LF, returning the complete
// lines found and the unconsumed tail (a possibly-empty partial line to
// retain for the next read), per spec.md section 4.1.
func extractLines(buf []byte) (lines []string, rest []byte) {
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		end := i
		if end > start && buf[end-1] == '\r' {
			end--
		}
		lines = append(lines, string(buf[start:end]))
		start = i + 1
	}
	return lines, buf[start:]
}

// tokenize parses one line (without line ending) into an irc.Message,
// following spec.md section 4.1's tokenization rule rather than full
// RFC 1459 grammar: this server accepts a slightly more lenient subset so
// common clients always parse.
func tokenize(line string) (irc.Message, bool) {
	if line == "" {
		return irc.Message{}, false
	}

	command := line
	rest := ""
	if idx := strings.IndexByte(line, ' '); idx != -1 {
		command = line[:idx]
		rest = line[idx+1:]
	}
	if command == "" {
		return irc.Message{}, false
	}
	command = strings.ToUpper(command)

	var params []string

	switch {
	case strings.HasPrefix(rest, ":"):
		params = []string{rest[1:]}
	case rest != "":
		head := rest
		trailing := ""
		hasTrailing := false
		if idx := strings.Index(rest, " :"); idx != -1 {
			head = rest[:idx]
			trailing = rest[idx+2:]
			hasTrailing = true
		}
		if head != "" {
			params = strings.Fields(head)
		}
		if hasTrailing {
			params = append(params, trailing)
		}
	}

	return irc.Message{Command: command, Params: params}, true
}
