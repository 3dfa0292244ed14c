package dispatch

import (
	"context"
	"strings"
)

// Handler processes one request. Returned errors are reported to the user and logged.
type Handler func(ctx context.Context, req *Request) error

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Name        string
	Handler     Handler
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// NormalizeName strips a leading slash and any @botname suffix and lower-cases the rest.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

// ParseCommand splits "/name@bot args" into the normalized name and the argument text.
// ok is false when text is not a command.
func ParseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	name = NormalizeName(head)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(rest), true
}
