package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/state"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return bot
}

func message(text string) *tele.Message {
	return &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: -100},
	}
}

func TestNewRequestText(t *testing.T) {
	bot := offlineBot(t)
	req := NewRequest(bot.NewContext(tele.Update{ID: 1, Message: message("Website")}))
	assert.Equal(t, dispatch.KindText, req.Kind)
	assert.Equal(t, "Website", req.Text)
	assert.Equal(t, state.Key{ChatID: -100, UserID: 7}, req.Key)
}

func TestNewRequestCommand(t *testing.T) {
	bot := offlineBot(t)
	req := NewRequest(bot.NewContext(tele.Update{ID: 2, Message: message("/logtime@timebot 05.01.2026")}))
	assert.Equal(t, dispatch.KindCommand, req.Kind)
	assert.Equal(t, "logtime", req.Command)
	assert.Equal(t, "05.01.2026", req.Args)
}

func TestNewRequestCallback(t *testing.T) {
	bot := offlineBot(t)
	cb := &tele.Callback{ID: "cb", Data: "tl:p:5", Sender: &tele.User{ID: 7}, Message: message("Pick")}
	req := NewRequest(bot.NewContext(tele.Update{ID: 3, Callback: cb}))
	assert.Equal(t, dispatch.KindCallback, req.Kind)
	assert.Equal(t, "tl:p:5", req.Callback)
	assert.Equal(t, state.Key{ChatID: -100, UserID: 7}, req.Key)
}

func TestNewRequestVoice(t *testing.T) {
	bot := offlineBot(t)
	msg := message("")
	msg.Voice = &tele.Voice{Duration: 4, File: tele.File{FileID: "f", FileSize: MaxAudioBytes + 1}}
	req := NewRequest(bot.NewContext(tele.Update{ID: 4, Message: msg}))
	require.Equal(t, dispatch.KindVoice, req.Kind)
	require.NotNil(t, req.Audio)
	assert.Equal(t, "audio/ogg", req.Audio.MIME)
	assert.Equal(t, 4, req.Audio.Duration)

	_, err := req.Audio.Load(t.Context())
	assert.ErrorContains(t, err, "too large")
}

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "EXTERNAL", deriveErrorCode(errs.External("odoo", assert.AnError)))
	assert.Equal(t, "INTERNAL", deriveErrorCode(assert.AnError))
}
