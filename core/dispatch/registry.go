package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/m3rciful/timebot/core/logger"
)

// ErrEmptyName is returned when registering a command without a name.
var ErrEmptyName = errors.New("command name is empty")

// Registry holds bot commands and the default text, voice and callback handlers.
// It is built at startup and owned by a Dispatcher.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	text             Handler
	voice            Handler
	callbackNotFound Handler
}

// NewRegistry creates an empty Registry with the default expired-callback reply.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		callbackNotFound: func(ctx context.Context, req *Request) error {
			return req.Send(ctx, "This action has expired. Start again with a command.")
		},
	}
}

// Register adds cmd under its normalized name. A later registration of the same
// name replaces the earlier one.
func (r *Registry) Register(cmd Command) error {
	name := NormalizeName(cmd.Name)
	if name == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("reason", "empty_name"),
		)
		return ErrEmptyName
	}
	if cmd.Handler == nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("command", name),
			slog.String("reason", "nil_handler"),
		)
		return errors.New("command " + name + ": nil handler")
	}
	cmd.Name = name
	aliases := make([]string, 0, len(cmd.Aliases))
	for _, a := range cmd.Aliases {
		if n := NormalizeName(a); n != "" && n != name {
			aliases = append(aliases, n)
		}
	}
	cmd.Aliases = aliases

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.replace",
			slog.String("command", name),
		)
	}
	r.commands[name] = cmd
	return nil
}

// MustRegister registers every command and panics on the first error.
func (r *Registry) MustRegister(cmds ...Command) {
	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Lookup searches for a command by name or alias.
func (r *Registry) Lookup(name string) (Command, bool) {
	name = NormalizeName(name)
	if name == "" {
		return Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	for _, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd, true
			}
		}
	}
	return Command{}, false
}

// List returns commands sorted by name, optionally dropping hidden and admin-only ones.
func (r *Registry) List(visibleOnly bool) []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// SetDefault sets the handler for non-command text. Nil removes it.
func (r *Registry) SetDefault(h Handler) {
	r.mu.Lock()
	r.text = h
	r.mu.Unlock()
}

// Default returns the current text handler.
func (r *Registry) Default() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.text
}

// SetVoice sets the handler for voice and audio messages.
func (r *Registry) SetVoice(h Handler) {
	r.mu.Lock()
	r.voice = h
	r.mu.Unlock()
}

// Voice returns the current voice handler.
func (r *Registry) Voice() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.voice
}

// SetCallbackNotFound replaces the handler for callbacks that no session owns.
func (r *Registry) SetCallbackNotFound(h Handler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}
