package format

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile(`([_*\[\]()~` + "`" + `>#+\-=|{}.!\\])`)
	// inside pre and code entities only ` and \ need escaping
	mdV2CodeRe = regexp.MustCompile("([`\\\\])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// entityType "pre" or "code" selects the reduced V2 escaping used inside code blocks.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		if entityType == "pre" || entityType == "code" {
			return mdV2CodeRe.ReplaceAllString(text, `\$1`), nil
		}
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// V2 escapes text for plain MarkdownV2 context.
func V2(text string) string {
	out, _ := EscapeMarkdown(text, MarkdownV2, "")
	return out
}

// CodeBlock wraps text in a MarkdownV2 pre block, escaping its content.
func CodeBlock(text string) string {
	out, _ := EscapeMarkdown(text, MarkdownV2, "pre")
	var b strings.Builder
	b.WriteString("```\n")
	b.WriteString(out)
	if !strings.HasSuffix(out, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("```")
	return b.String()
}

// Bold returns escaped text wrapped in MarkdownV2 bold markers.
func Bold(text string) string {
	return "*" + V2(text) + "*"
}
