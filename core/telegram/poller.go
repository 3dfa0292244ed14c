package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/timebot/core/config"
)

const defaultLongPollSeconds = 10

// longPollTimeout returns the configured long-polling timeout or the default.
func longPollTimeout(cfg *coreconfig.Config) time.Duration {
	sec := defaultLongPollSeconds
	if cfg != nil && cfg.Telegram.LongPollTimeoutSeconds > 0 {
		sec = cfg.Telegram.LongPollTimeoutSeconds
	}
	return time.Duration(sec) * time.Second
}

// BuildPoller returns a webhook or long poller according to the run mode.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg != nil && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook) {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	return &tele.LongPoller{Timeout: longPollTimeout(cfg)}
}
