package state

import (
	"strconv"
	"time"
)

// DefaultTTL is the idle period after which a session is treated as absent.
const DefaultTTL = 30 * time.Minute

// Key identifies a conversation: one session per chat and user.
type Key struct {
	ChatID int64
	UserID int64
}

func (k Key) String() string {
	return strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

// Option customizes a Store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL overrides the idle expiry. Non-positive values disable expiry.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithClock injects the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
