package command

import (
	"strings"
	"unicode"
)

// Invocation is one parsed command message. It is built fresh per
// message and never outlives the response.
type Invocation struct {
	Command string
	Args    []string
}

// Parse splits raw text into an invocation. It returns nil when the
// text does not start with the prefix, so independent handlers can
// share one message stream without error noise.
func Parse(raw, prefix string) *Invocation {
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return nil
	}
	fields := splitArgs(strings.TrimPrefix(raw, prefix))
	if len(fields) == 0 {
		return nil
	}
	return &Invocation{Command: fields[0], Args: fields[1:]}
}

// splitArgs splits on whitespace, honoring double quotes so free-text
// arguments can contain spaces.
func splitArgs(text string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	for _, r := range text {
		switch {
		case r == '"':
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

// ParseMemberMention extracts the user id from <@id> or <@!id>.
func ParseMemberMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	return id, isSnowflake(id)
}

// ParseRoleMention extracts the role id from <@&id>.
func ParseRoleMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<@&") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<@&"), ">")
	return id, isSnowflake(id)
}

// ParseChannelMention extracts the channel id from <#id>.
func ParseChannelMention(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "<#") || !strings.HasSuffix(arg, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	return id, isSnowflake(id)
}

func isSnowflake(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
