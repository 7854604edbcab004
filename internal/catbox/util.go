package catbox

import "strconv"

// maxChannelLength is the RFC limit on channel name length.
const maxChannelLength = 50

// maxTopicLength bounds TOPIC text to something comfortably under a single
// protocol line.
const maxTopicLength = 300

// isValidNick checks a nickname against the registration rule: non-empty,
// at most maxLen bytes, first byte alphabetic, remaining bytes alphanumeric
// or one of "-_[]{}\|".
func isValidNick(maxLen int, n string) bool {
	if len(n) == 0 || len(n) > maxLen {
		return false
	}

	for i := 0; i < len(n); i++ {
		c := n[i]
		if i == 0 {
			if !isAlpha(c) {
				return false
			}
			continue
		}
		if isAlpha(c) || isDigit(c) || isNickSpecial(c) {
			continue
		}
		return false
	}

	return true
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNickSpecial(c byte) bool {
	switch c {
	case '-', '_', '[', ']', '{', '}', '\\', '|':
		return true
	}
	return false
}

// isValidUser checks a USER command's username token: non-empty, and none
// of space, NUL, CR or LF. Other whitespace and control bytes are accepted.
func isValidUser(u string) bool {
	if len(u) == 0 {
		return false
	}
	for i := 0; i < len(u); i++ {
		c := u[i]
		if c == ' ' || c == '\x00' || c == '\r' || c == '\n' {
			return false
		}
	}
	return true
}

// isValidChannel checks a channel name for validity: must start with '#',
// at most maxChannelLength bytes, and contain none of space, comma, BEL, CR
// or LF. Other control bytes are accepted.
func isValidChannel(c string) bool {
	if len(c) == 0 || len(c) > maxChannelLength {
		return false
	}

	if c[0] != '#' {
		return false
	}

	for i := 1; i < len(c); i++ {
		switch c[i] {
		case ' ', ',', '\x07', '\r', '\n':
			return false
		}
	}

	return true
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
