package router

import (
	"context"
	"fmt"
	"io"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/state"
	"github.com/m3rciful/timebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/timebot/core/telegram/helpers"
	"github.com/m3rciful/timebot/core/telegram/keyboard"
)

// MaxAudioBytes caps voice downloads; Telegram bots cannot fetch files above 20 MB anyway.
const MaxAudioBytes = 20 << 20

// replier sends dispatch replies through the helper send queue.
type replier struct{ c tele.Context }

func (r replier) Reply(_ context.Context, rep dispatch.Reply) error {
	opts := &tele.SendOptions{ReplyMarkup: keyboard.FromReply(rep)}
	if rep.Markdown {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	return tghelpers.SendText(r.c, rep.Text, opts)
}

// NewRequest reduces a telebot update to a dispatch request.
func NewRequest(c tele.Context) *dispatch.Request {
	req := &dispatch.Request{Replier: replier{c: c}}
	if chat := c.Chat(); chat != nil {
		req.Key.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		req.Key.UserID = user.ID
	}
	if req.Key.ChatID == 0 {
		req.Key = state.Key{ChatID: req.Key.UserID, UserID: req.Key.UserID}
	}

	if cb := c.Callback(); cb != nil {
		req.Kind = dispatch.KindCallback
		req.Callback = callbacks.Data(cb)
		return req
	}

	if msg := c.Message(); msg != nil {
		switch {
		case msg.Voice != nil:
			req.Kind = dispatch.KindVoice
			req.Audio = &dispatch.Audio{
				MIME:     mimeOr(msg.Voice.MIME, "audio/ogg"),
				Duration: msg.Voice.Duration,
				Load:     fileLoader(c, &msg.Voice.File),
			}
			return req
		case msg.Audio != nil:
			req.Kind = dispatch.KindVoice
			req.Audio = &dispatch.Audio{
				MIME:     mimeOr(msg.Audio.MIME, "audio/mpeg"),
				Duration: msg.Audio.Duration,
				Load:     fileLoader(c, &msg.Audio.File),
			}
			return req
		}
	}

	req.Text = c.Text()
	if name, args, ok := dispatch.ParseCommand(req.Text); ok {
		req.Kind = dispatch.KindCommand
		req.Command = name
		req.Args = args
		return req
	}
	req.Kind = dispatch.KindText
	return req
}

func mimeOr(mime, fallback string) string {
	if mime == "" {
		return fallback
	}
	return mime
}

func fileLoader(c tele.Context, file *tele.File) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		if file.FileSize > MaxAudioBytes {
			return nil, fmt.Errorf("audio too large: %d bytes", file.FileSize)
		}
		rc, err := c.Bot().File(file)
		if err != nil {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, MaxAudioBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		if len(data) > MaxAudioBytes {
			return nil, fmt.Errorf("audio too large")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return data, nil
	}
}
