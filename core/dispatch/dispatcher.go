package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/state"
)

// SessionFlow is a multi-step conversation. While it reports a session as active,
// text, callbacks and the cancel command for that key are routed to it.
type SessionFlow interface {
	Active(key state.Key) bool
	Handle(ctx context.Context, req *Request) error
}

// CancelCommand is routed to the active session flow instead of the registry.
const CancelCommand = "cancel"

// Options configure a Dispatcher.
type Options struct {
	// AdminID restricts AdminOnly commands to this user; zero disables the check.
	AdminID int64
	Flow    SessionFlow
	// OnAdminReject replies to rejected admin-only calls; nil stays silent.
	OnAdminReject Handler
}

// Outcome summarizes one dispatch for transport-level logging.
type Outcome struct {
	Handler string
	Status  string
	Reason  string
	Err     error
}

// Dispatcher routes requests to registered handlers or the active session flow.
// It is synchronous: the transport owns concurrency.
type Dispatcher struct {
	reg  *Registry
	opts Options
}

// New creates a Dispatcher that owns reg.
func New(reg *Registry, opts Options) *Dispatcher {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Dispatcher{reg: reg, opts: opts}
}

// Registry exposes the command registry, for help listings and menu setup.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch handles one request. Handler errors and panics are logged, reported to
// the user as text, and never propagated to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) Outcome {
	if req == nil {
		return Outcome{Handler: "unknown", Status: "skip", Reason: "nil_request"}
	}
	name, h, reason := d.route(req)
	if h == nil {
		logger.Debug(ctx, "dispatch", "dispatch.route",
			slog.String("status", "skip"),
			slog.String("handler", name),
			slog.String("kind", req.Kind.String()),
			slog.String("reason", reason),
		)
		return Outcome{Handler: name, Status: "skip", Reason: reason}
	}

	ctx = logger.WithHandler(ctx, name)
	start := time.Now()
	err := d.invoke(ctx, name, req, h)
	if err == nil {
		return Outcome{Handler: name, Status: "ok", Reason: reason}
	}

	attrs := append([]slog.Attr{
		slog.String("status", "fail"),
		slog.String("handler", name),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}, logger.ErrAttrs(err)...)
	logger.Warn(ctx, "dispatch", "dispatch.error", attrs...)

	if msg := UserMessage(err); msg != "" {
		if sendErr := req.Send(ctx, msg); sendErr != nil {
			logger.Warn(ctx, "dispatch", "dispatch.report",
				append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(sendErr)...)...)
		}
	}
	return Outcome{Handler: name, Status: "fail", Reason: reason, Err: err}
}

func (d *Dispatcher) route(req *Request) (string, Handler, string) {
	active := d.opts.Flow != nil && d.opts.Flow.Active(req.Key)

	switch req.Kind {
	case KindCommand:
		if active && req.Command == CancelCommand {
			return "flow", d.opts.Flow.Handle, "cancel"
		}
		cmd, ok := d.reg.Lookup(req.Command)
		if !ok {
			return "command." + req.Command, nil, "unknown_command"
		}
		if d.denied(cmd, req.Key) {
			return "command." + cmd.Name, d.opts.OnAdminReject, "admin_only"
		}
		return "command." + cmd.Name, cmd.Handler, ""
	case KindText:
		if active {
			return "flow", d.opts.Flow.Handle, ""
		}
		if h := d.reg.Default(); h != nil {
			return "default", h, ""
		}
		return "default", nil, "no_default"
	case KindCallback:
		if active {
			return "flow", d.opts.Flow.Handle, ""
		}
		return "callback.expired", d.reg.CallbackNotFound(), "no_session"
	case KindVoice:
		if h := d.reg.Voice(); h != nil {
			return "voice", h, ""
		}
		return "voice", nil, "no_voice_handler"
	}
	return "unknown", nil, "unknown_kind"
}

func (d *Dispatcher) denied(cmd Command, key state.Key) bool {
	return cmd.AdminOnly && d.opts.AdminID != 0 && key.UserID != d.opts.AdminID
}

// RunCommand runs the command registered as name on behalf of req, as if the user
// had typed it without arguments. Unknown names yield an Unrecognized error.
func (d *Dispatcher) RunCommand(ctx context.Context, req *Request, name string) error {
	cmd, ok := d.reg.Lookup(name)
	if !ok {
		return errs.Unrecognized("dispatch.run", fmt.Errorf("unknown command %q", name))
	}
	sub := *req
	sub.Kind = KindCommand
	sub.Command = cmd.Name
	sub.Args = ""
	sub.Text = "/" + cmd.Name
	sub.Audio = nil

	if d.denied(cmd, req.Key) {
		if d.opts.OnAdminReject == nil {
			return nil
		}
		return d.invoke(ctx, "command."+cmd.Name, &sub, d.opts.OnAdminReject)
	}
	return d.invoke(ctx, "command."+cmd.Name, &sub, cmd.Handler)
}

func (d *Dispatcher) invoke(ctx context.Context, name string, req *Request, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "dispatch", "dispatch.panic",
				slog.String("status", "fail"),
				slog.String("handler", name),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%s: internal error", name)
		}
	}()
	return h(ctx, req)
}

// UserMessage renders err for the chat. Unrecognized input stays silent.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Kind == errs.KindValidation && e.Err != nil {
		return logger.SanitizeLimit(e.Err.Error(), 512)
	}
	switch errs.KindOf(err) {
	case errs.KindUnrecognized:
		return ""
	case errs.KindExternal:
		return "⚠️ Service error: " + logger.SanitizeLimit(err.Error(), 512)
	}
	return "⚠️ Error: " + logger.SanitizeLimit(err.Error(), 512)
}
