package analyzer

import (
	"strings"

	"github.com/Zachacious/go-mockspec/internal/psast"
)

// ParsedHelp holds the sections of comment-based help.
type ParsedHelp struct {
	Synopsis    string
	Description string
	// Parameters maps a lower-cased parameter name to its .PARAMETER text.
	Parameters map[string]string
	Examples   []string
}

// parseHelp extracts the keyword sections of a help comment. Section bodies
// are trimmed and their lines joined with newlines.
func parseHelp(c *psast.Comment) *ParsedHelp {
	if c == nil {
		return nil
	}
	help := &ParsedHelp{Parameters: make(map[string]string)}

	var keyword, arg string
	var body []string
	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		switch keyword {
		case "synopsis":
			help.Synopsis = text
		case "description":
			help.Description = text
		case "parameter":
			if arg != "" {
				help.Parameters[strings.ToLower(arg)] = text
			}
		case "example":
			if text != "" {
				help.Examples = append(help.Examples, text)
			}
		}
		body = body[:0]
	}

	for _, line := range strings.Split(c.Text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		if strings.HasPrefix(trimmed, ".") && len(trimmed) > 1 && isSectionName(trimmed[1:]) {
			flush()
			parts := strings.Fields(trimmed[1:])
			keyword = strings.ToLower(parts[0])
			arg = ""
			if len(parts) > 1 {
				arg = parts[1]
			}
			continue
		}
		body = append(body, trimmed)
	}
	flush()

	// Without a .SYNOPSIS the first line of the description stands in.
	if help.Synopsis == "" && help.Description != "" {
		help.Synopsis = strings.SplitN(help.Description, "\n", 2)[0]
	}
	return help
}

// isSectionName reports whether s starts with a help keyword such as
// SYNOPSIS or PARAMETER Name.
func isSectionName(s string) bool {
	word := s
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		word = s[:i]
	}
	if word == "" {
		return false
	}
	for _, r := range word {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
