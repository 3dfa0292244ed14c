package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/timebot/core/errs"
	"github.com/m3rciful/timebot/core/telegram/sender"
)

type sent struct {
	to   string
	text string
	mode tele.ParseMode
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := sent{to: to.Recipient(), text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.mode = so.ParseMode
		}
	}
	f.msgs = append(f.msgs, s)
	return &tele.Message{ID: len(f.msgs)}, nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

func TestNewRequiresChat(t *testing.T) {
	_, err := New(Options{Sender: &fakeSender{}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfiguration))

	_, err = New(Options{ChatID: 5})
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}

func TestNotifyInline(t *testing.T) {
	fs := &fakeSender{}
	n, err := New(Options{Sender: fs, ChatID: 42})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "🔔 backup done", false))
	require.NoError(t, n.Notify(context.Background(), "*Status*", true))

	got := fs.all()
	require.Len(t, got, 2)
	assert.Equal(t, sent{to: "42", text: "🔔 backup done"}, got[0])
	assert.Equal(t, sent{to: "42", text: "*Status*", mode: tele.ModeMarkdown}, got[1])
}

func TestNotifyRejectsEmpty(t *testing.T) {
	fs := &fakeSender{}
	n, err := New(Options{Sender: fs, ChatID: 42})
	require.NoError(t, err)

	err = n.Notify(context.Background(), "  \n", false)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Empty(t, fs.all())
}

func TestNotifyInlineFailureIsExternal(t *testing.T) {
	fs := &fakeSender{err: errors.New("telegram: chat not found (400)")}
	n, err := New(Options{Sender: fs, ChatID: 42})
	require.NoError(t, err)

	err = n.Notify(context.Background(), "hi", false)
	assert.True(t, errs.Is(err, errs.KindExternal))
}

func TestNotifyThroughQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeSender{}
	q := sender.NewQueue(sender.Options{Workers: 1, QueueSize: 8})
	n, err := New(Options{Sender: fs, ChatID: 7, Queue: q})
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, n.Notify(context.Background(), text, false))
	}
	q.Close()

	got := fs.all()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{got[0].text, got[1].text, got[2].text})
	assert.Equal(t, uint64(3), q.Stats().Sent)
}

func TestNotifyClosedQueueFallsBackInline(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := &fakeSender{}
	q := sender.NewQueue(sender.Options{Workers: 1})
	q.Close()
	n, err := New(Options{Sender: fs, ChatID: 7, Queue: q})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "late", false))
	assert.Len(t, fs.all(), 1)
}

func serve(t *testing.T, h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	fs := &fakeSender{}
	n, err := New(Options{Sender: fs, ChatID: 9})
	require.NoError(t, err)
	h := Handler(n, "s3cret")

	rec := serve(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, h, http.MethodPost, "/notify", "", `{"text":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, h, http.MethodPost, "/notify", "Bearer wrong", `{"text":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, h, http.MethodPost, "/notify", "Bearer s3cret", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/notify", "Bearer s3cret", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodPost, "/notify", "Bearer s3cret", `{"text":"*Deploy* ok","markdown":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	got := fs.all()
	require.Len(t, got, 1)
	assert.Equal(t, sent{to: "9", text: "*Deploy* ok", mode: tele.ModeMarkdown}, got[0])
}

func TestHandlerSendFailure(t *testing.T) {
	n, err := New(Options{Sender: &fakeSender{err: errors.New("boom")}, ChatID: 9})
	require.NoError(t, err)

	rec := serve(t, Handler(n, "t"), http.MethodPost, "/notify", "Bearer t", `{"text":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandlerEmptyTokenRejectsAll(t *testing.T) {
	n, err := New(Options{Sender: &fakeSender{}, ChatID: 9})
	require.NoError(t, err)

	rec := serve(t, Handler(n, ""), http.MethodPost, "/notify", "Bearer ", `{"text":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListenAndShutdown(t *testing.T) {
	fs := &fakeSender{}
	n, err := New(Options{Sender: fs, ChatID: 9})
	require.NoError(t, err)

	srv, err := Listen("127.0.0.1:0", Handler(n, "tok"))
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodPost, "http://"+srv.Addr()+"/notify", strings.NewReader(`{"text":"ping"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Len(t, fs.all(), 1)
}
