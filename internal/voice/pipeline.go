// Package voice turns voice notes into bot commands.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/internal/intent"
	"github.com/m3rciful/timebot/internal/journal"
)

// DisabledText is the reply to voice notes when transcription is not configured.
const DisabledText = "❌ Voice commands are not configured.\n\n" +
	"To enable voice commands:\n" +
	"1. Set GEMINI_API_KEY and VOICE_ENABLED=true\n" +
	"2. Restart the bot"

// Recognizer maps a transcript to a command name.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (string, bool, error)
}

// Runner executes a registered command on behalf of a request.
type Runner interface {
	RunCommand(ctx context.Context, req *dispatch.Request, name string) error
}

// Recorder keeps a history of recognized voice notes.
type Recorder interface {
	RecordVoice(ctx context.Context, v journal.VoiceIntent) error
}

// Options wires a Pipeline. A nil Transcriber disables voice.
type Options struct {
	Transcriber intent.Transcriber
	Recognizer  Recognizer
	Runner      Runner
	Journal     Recorder
}

// Pipeline handles KindVoice requests.
type Pipeline struct {
	tr      intent.Transcriber
	rec     Recognizer
	run     Runner
	journal Recorder
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	return &Pipeline{tr: opts.Transcriber, rec: opts.Recognizer, run: opts.Runner, journal: opts.Journal}
}

// Enabled reports whether voice notes are transcribed.
func (p *Pipeline) Enabled() bool { return p.tr != nil && p.rec != nil && p.run != nil }

// Handle is a dispatch.Handler for voice notes.
func (p *Pipeline) Handle(ctx context.Context, req *dispatch.Request) error {
	if !p.Enabled() {
		return req.Send(ctx, DisabledText)
	}
	if req.Audio == nil || req.Audio.Load == nil {
		return errs.Validation("voice", errors.New("This message has no audio attached."))
	}
	if err := req.Send(ctx, "🎤 Received voice message, transcribing..."); err != nil {
		return err
	}

	start := time.Now()
	audio, err := req.Audio.Load(ctx)
	if err != nil {
		return errs.External("voice.download", err)
	}
	transcript, err := p.tr.Transcribe(ctx, audio, req.Audio.MIME)
	if err != nil {
		return errs.External("voice.transcribe", err)
	}
	transcript = strings.TrimSpace(transcript)
	logger.Info(ctx, logger.CompVoice, "voice.transcribe",
		slog.String("status", "ok"),
		slog.Int("count", len(audio)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	if transcript == "" {
		return req.Send(ctx, "🤷 I couldn't hear anything in that voice message.")
	}

	name, ok, err := p.rec.Recognize(ctx, transcript)
	if err != nil {
		return err
	}
	p.record(ctx, req, transcript, name, ok)

	if !ok {
		return req.Send(ctx, fmt.Sprintf("I heard: '%s'\n\nBut I couldn't match it to a known command.", transcript))
	}
	if err := req.Send(ctx, fmt.Sprintf("I heard: '%s'\n\nExecuting command: /%s", transcript, name)); err != nil {
		return err
	}
	return p.run.RunCommand(ctx, req, name)
}

func (p *Pipeline) record(ctx context.Context, req *dispatch.Request, transcript, name string, matched bool) {
	if p.journal == nil {
		return
	}
	err := p.journal.RecordVoice(ctx, journal.VoiceIntent{
		ChatID:     req.Key.ChatID,
		UserID:     req.Key.UserID,
		Transcript: transcript,
		Command:    name,
		Matched:    matched,
	})
	if err != nil {
		logger.Warn(ctx, logger.CompVoice, "voice.journal", append([]slog.Attr{slog.String("status", "fail")}, logger.ErrAttrs(err)...)...)
	}
}
