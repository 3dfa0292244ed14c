package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/internal/config"
)

// maxOutput is the number of trailing output bytes echoed to the chat.
const maxOutput = 3000

func scriptCommand(sc config.ScriptConfig) dispatch.Command {
	desc := sc.Description
	if desc == "" {
		desc = "Run " + sc.Name
	}
	return dispatch.Command{
		Name:        sc.Name,
		Description: desc,
		AdminOnly:   sc.AdminOnly,
		Handler: func(ctx context.Context, req *dispatch.Request) error {
			return runScript(ctx, req, sc)
		},
	}
}

func runScript(ctx context.Context, req *dispatch.Request, sc config.ScriptConfig) error {
	if err := req.Send(ctx, fmt.Sprintf("🔄 Running %s...", sc.Name)); err != nil {
		return err
	}
	timeout := time.Duration(sc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, sc.Command, sc.Args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	err := cmd.Run()
	took := logger.RoundMS(time.Since(start))
	output := tail(out.String(), maxOutput)

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s", timeout)
		}
		attrs := append([]slog.Attr{
			slog.String("status", "fail"),
			slog.String("command", sc.Name),
			slog.Duration("duration", took),
		}, logger.ErrAttrs(err)...)
		logger.Warn(ctx, logger.CompScripts, "script.run", attrs...)
		if output != "" {
			err = fmt.Errorf("%w\n\n%s", err, output)
		}
		return errs.External("script."+sc.Name, err)
	}

	logger.Info(ctx, logger.CompScripts, "script.run",
		slog.String("status", "ok"),
		slog.String("command", sc.Name),
		slog.Duration("duration", took),
	)
	msg := fmt.Sprintf("✅ %s completed in %s", sc.Name, took)
	if output != "" {
		msg += "\n\n" + output
	}
	return req.Send(ctx, msg)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	// Skip a partial UTF-8 sequence at the cut.
	for len(s) > 0 && s[0]&0xC0 == 0x80 {
		s = s[1:]
	}
	return "…" + s
}
