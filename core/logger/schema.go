package logger

import "strings"

// Level names as they appear in the "level" field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return strings.ToUpper(level)
}

// outcome is the only enumerated field that is dropped when invalid;
// status keeps unknown values lower-cased.
func normalizeOutcome(outcome string) (string, bool) {
	switch o := strings.ToLower(strings.TrimSpace(outcome)); o {
	case "ok", "fail", "cancelled", "rate_limited":
		return o, true
	}
	return "", false
}

// defaultKeyOrder puts the envelope first, then update identity, then domain fields.
// Keys not listed follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "command", "state", "next_state", "op", "cb_key", "outcome",
	"duration_ms", "messages", "kb", "count", "matches",
	"company_id", "project_id", "task_id", "entry_id", "hours", "from", "to",
	"intent", "transcript", "script", "exit_code",
	"username", "mode", "listen", "public_url", "http_code", "path",
	"db", "driver", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}
