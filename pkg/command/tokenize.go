// Package command implements command detection/tokenization and the
// platform-reserved-command table described in spec.md §4.2 steps 4 and 6.
package command

import "strings"

// Parse checks whether message begins with one of prefixes and, if so,
// splits it into (prefix, command, args), lower-casing the command name.
// Returns ok=false if message does not start with a configured prefix or
// nothing but whitespace follows the prefix (no command name). Whitespace
// between the prefix and the command name is skipped, so "! help" parses
// as command "help".
func Parse(message string, prefixes []string) (prefix, command string, args []string, ok bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", "", nil, false
	}

	var matched string
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(trimmed, p) {
			if matched == "" || len(p) > len(matched) {
				matched = p
			}
		}
	}
	if matched == "" {
		return "", "", nil, false
	}

	rest := trimmed[len(matched):]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", "", nil, false
	}

	return matched, strings.ToLower(fields[0]), fields[1:], true
}
