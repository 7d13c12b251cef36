package main

import "regexp"

// Nickname: matches ^[A-Za-z\[\]\\`_^{|}][A-Za-z0-9\[\]\\`_^{|}-]{0,50}$
var nickRE = regexp.MustCompile(`^[A-Za-z\[\]\\` + "`" + `_^{|}][A-Za-z0-9\[\]\\` + "`" + `_^{|}-]{0,50}$`)

// isValidNick checks if a nickname is valid per the grammar in spec.md §4.3.
func isValidNick(nick string) bool {
	return nickRE.MatchString(nick)
}

// isValidChannel checks a channel name for validity.
//
// First byte in & # + !, followed by 0-50 bytes none of which are NUL, BEL,
// LF, CR, space, comma, or colon.
func isValidChannel(name string) bool {
	if len(name) == 0 || len(name) > 51 {
		return false
	}

	switch name[0] {
	case '&', '#', '+', '!':
	default:
		return false
	}

	for i := 1; i < len(name); i++ {
		switch name[i] {
		case 0, 7, '\n', '\r', ' ', ',', ':':
			return false
		}
	}

	return true
}

// isValidUser checks a USER command's username parameter. The protocol is
// lenient here; we only reject characters that would break line framing.
func isValidUser(user string) bool {
	if len(user) == 0 {
		return false
	}
	for i := 0; i < len(user); i++ {
		switch user[i] {
		case 0, '\n', '\r', ' ':
			return false
		}
	}
	return true
}
