// Package intent maps free-form text to one of the bot's command names.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
)

// None is the model's answer when no command fits.
const None = "none"

// SystemPrompt instructs the model to answer with a bare command name.
const SystemPrompt = "You are a command interpreter. Respond with only the command name or 'none'."

// Model completes a single prompt.
type Model interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Command is a name the recognizer may return.
type Command struct {
	Name        string
	Description string
}

// Recognizer asks a Model which command a sentence refers to. It never runs anything.
type Recognizer struct {
	model    Model
	commands func() []Command
}

// NewRecognizer creates a Recognizer. commands is read on every call so that
// the set follows the registry.
func NewRecognizer(model Model, commands func() []Command) *Recognizer {
	return &Recognizer{model: model, commands: commands}
}

// Recognize returns the matched command name. ok is false when the model
// answers none or names a command outside the set.
func (r *Recognizer) Recognize(ctx context.Context, text string) (string, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}
	cmds := r.commands()
	if len(cmds) == 0 {
		return "", false, nil
	}
	start := time.Now()
	answer, err := r.model.Complete(ctx, SystemPrompt, BuildPrompt(text, cmds))
	if err != nil {
		return "", false, errs.External("intent.recognize", fmt.Errorf("command interpretation failed: %w", err))
	}
	name := Normalize(answer)
	matched := name != None && contains(cmds, name)

	status := "ok"
	if !matched {
		status = "skip"
	}
	logger.Info(ctx, logger.CompIntent, "intent.recognize",
		slog.String("status", status),
		slog.String("intent", logger.SanitizeLimit(name, 64)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	if !matched {
		return "", false, nil
	}
	return name, true, nil
}

func contains(cmds []Command, name string) bool {
	for _, c := range cmds {
		if c.Name == name {
			return true
		}
	}
	return false
}

// BuildPrompt lists the available commands and asks for exactly one name.
func BuildPrompt(text string, cmds []Command) string {
	var b strings.Builder
	b.WriteString("You are a voice command interpreter for a Telegram bot. The user said:\n\n")
	fmt.Fprintf(&b, "%q\n\nAvailable commands:\n", text)
	for _, c := range cmds {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	b.WriteString("\nDetermine which command (if any) the user wants to execute. ")
	b.WriteString(`Respond with ONLY the command name (e.g., "status", "ping") or "none" if no command matches.`)
	b.WriteString("\n\nIf the user is asking a question or making a statement that doesn't match a command, respond with \"none\".\n\nCommand:")
	return b.String()
}

// Normalize reduces a model answer to a bare lower-case command name.
func Normalize(answer string) string {
	s := strings.TrimSpace(answer)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`*")
	s = strings.TrimRight(s, ".!?,;:")
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	return strings.TrimSpace(s)
}
