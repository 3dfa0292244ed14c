package middleware

import (
	"log/slog"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/logger"
	"github.com/m3rciful/timebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/timebot/core/telegram/helpers"
)

// seenWindow is how many recent update ids are remembered for deduplication.
const seenWindow = 256

// seenUpdates is a fixed ring of recently logged update ids. The logger
// middleware runs both globally and per route, so one update passes it twice.
type seenUpdates struct {
	mu   sync.Mutex
	ring [seenWindow]int
	set  map[int]struct{}
	next int
}

var receipts = &seenUpdates{set: make(map[int]struct{}, seenWindow)}

// firstTime records id and reports whether it had not been seen yet.
func (s *seenUpdates) firstTime(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return false
	}
	if old := s.ring[s.next]; old != 0 {
		delete(s.set, old)
	}
	s.ring[s.next] = id
	s.set[id] = struct{}{}
	s.next = (s.next + 1) % seenWindow
	return true
}

// LoggerMiddleware prepares the per-update context and logs one update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if !receipts.firstTime(upd.ID) || !logger.ShouldSampleDebug() {
			return next(c)
		}

		attrs := []slog.Attr{slog.String("status", "ok"), slog.String("kind", updateKind(upd))}
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
		}
		if user := c.Sender(); user != nil {
			if user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
		}
		switch {
		case upd.Callback != nil:
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 128)),
				slog.String("payload", logger.SanitizeLimit(payload, 256)),
			)
		case upd.Message != nil && upd.Message.Voice != nil:
			attrs = append(attrs, slog.Int("voice_seconds", upd.Message.Voice.Duration))
		case upd.Message != nil:
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
		}
		logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", attrs...)
		return next(c)
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message == nil:
		return "other"
	case upd.Message.Voice != nil:
		return "voice"
	case strings.HasPrefix(upd.Message.Text, "/"):
		return "command"
	}
	return "text"
}
