package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	tghelpers "github.com/m3rciful/timebot/core/telegram/helpers"
	"github.com/m3rciful/timebot/core/telegram/middleware"
)

// dispatchWithSummary hands req to d and logs one handler summary line.
// Dispatch errors are already reported to the chat, so telebot always sees nil.
func dispatchWithSummary(c tele.Context, d *dispatch.Dispatcher, req *dispatch.Request, extras ...slog.Attr) error {
	start := time.Now()
	out := d.Dispatch(tghelpers.BuildContext(c), req)
	logHandlerSummary(c, out, start, append(extras, slog.String("kind", req.Kind.String()))...)
	return nil
}

func logHandlerSummary(c tele.Context, out dispatch.Outcome, start time.Time, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, out.Handler)
	msgs, kb := middleware.GetCounters(c)

	outcome := "ok"
	if out.Err != nil {
		outcome = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", out.Status),
		slog.String("handler", out.Handler),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if out.Reason != "" {
		attrs = append(attrs, slog.String("reason", out.Reason))
	}
	if out.Err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(out.Err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(out.Err)),
			slog.String("cause", out.Handler),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if kind := errs.KindOf(err); kind != "" {
		return errs.E(kind, "", nil).Code()
	}
	return "INTERNAL"
}
