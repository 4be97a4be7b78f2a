package command

import (
	"strings"
)

// Command is a tokenized chat command
type Command struct {
	Name string            `json:"command"`
	Args map[string]string `json:"args"`
}

// Parse splits text into a command name and its --key value arguments.
//
//	create --name Game Night --time tomorrow at 5pm --maxplayers 5
//
// Text before the first flag is dropped, as are flags with an empty key.
// A flag without a value maps to "". Keys are lower-cased; a repeated key keeps
// its last value.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	cmd := Command{Args: make(map[string]string)}
	if text == "" {
		return cmd
	}

	fields := strings.Fields(text)
	cmd.Name = strings.ToLower(fields[0])
	rest := strings.TrimSpace(text[len(fields[0]):])

	for _, segment := range splitFlags(rest) {
		segment = strings.TrimSpace(segment)
		parts := strings.Fields(segment)
		if len(parts) == 0 || strings.HasPrefix(segment, "-") {
			continue
		}
		key := parts[0]
		cmd.Args[strings.ToLower(key)] = strings.TrimSpace(segment[len(key):])
	}

	return cmd
}

// splitFlags returns the text following each "--" that starts a word
func splitFlags(s string) []string {
	var segments []string
	start := -1
	for i := 0; i+1 < len(s); i++ {
		if s[i] != '-' || s[i+1] != '-' {
			continue
		}
		if i > 0 && s[i-1] != ' ' && s[i-1] != '\t' && s[i-1] != '\n' {
			continue
		}
		if start >= 0 {
			segments = append(segments, s[start:i])
		}
		start = i + 2
		i++
	}
	if start >= 0 && start <= len(s) {
		segments = append(segments, s[start:])
	}
	return segments
}
