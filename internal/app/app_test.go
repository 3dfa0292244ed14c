package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/timebot/core/config"
	coredatabase "github.com/m3rciful/timebot/core/database"
	"github.com/m3rciful/timebot/core/dispatch"
	"github.com/m3rciful/timebot/core/state"
	coretelegram "github.com/m3rciful/timebot/core/telegram"
	"github.com/m3rciful/timebot/internal/config"
)

var (
	admin = state.Key{ChatID: 1, UserID: 1}
	guest = state.Key{ChatID: 2, UserID: 2}
	now   = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
)

// odooStub answers execute_kw calls by "model.method".
func odooStub(t *testing.T, answers map[string]any) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64 `json:"id"`
			Params struct {
				Service string `json:"service"`
				Args    []any  `json:"args"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var result any = 7
		if req.Params.Service == "object" {
			model, _ := req.Params.Args[3].(string)
			method, _ := req.Params.Args[4].(string)
			mu.Lock()
			result = answers[model+"."+method]
			mu.Unlock()
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, odooURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Config: coreconfig.Config{
			Telegram: coreconfig.TelegramConfig{Token: "123:abc", AdminID: admin.UserID, ChatID: admin.ChatID},
		},
		Odoo: config.OdooConfig{URL: odooURL, DB: "odoo", Username: "me@example.com", APIKey: "key"},
		Database: coredatabase.Config{
			Enabled:       true,
			Path:          filepath.Join(t.TempDir(), "journal.db"),
			MigrationsDir: filepath.Join("..", "..", "migrations"),
		},
		Scripts:  []config.ScriptConfig{{Name: "deploy", Command: "true", AdminOnly: true}},
		Timezone: "UTC",
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

type texts []dispatch.Reply

func (r *texts) Reply(_ context.Context, rep dispatch.Reply) error {
	*r = append(*r, rep)
	return nil
}

func (r texts) last() string { return r[len(r)-1].Text }

func send(a *App, key state.Key, req dispatch.Request) texts {
	var out texts
	req.Key, req.Replier = key, &out
	a.Dispatcher().Dispatch(context.Background(), &req)
	return out
}

func command(a *App, key state.Key, name string) texts {
	return send(a, key, dispatch.Request{Kind: dispatch.KindCommand, Command: name, Text: "/" + name})
}

func text(a *App, key state.Key, s string) texts {
	return send(a, key, dispatch.Request{Kind: dispatch.KindText, Text: s})
}

func click(a *App, key state.Key, data string) texts {
	return send(a, key, dispatch.Request{Kind: dispatch.KindCallback, Callback: data})
}

func newApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	opts.LoggerInit = func(*coreconfig.Config) error { return nil }
	opts.Now = func() time.Time { return now }
	a, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func erp(t *testing.T) *httptest.Server {
	return odooStub(t, map[string]any{
		"res.company.search_read":           []map[string]any{{"id": 1, "name": "Acme GmbH"}},
		"project.project.search_read":       []map[string]any{{"id": 1, "name": "Website"}, {"id": 2, "name": "Shop"}},
		"project.task.search_read":          []map[string]any{{"id": 11, "name": "Bugfix"}},
		"hr.employee.search":                []int{5},
		"account.analytic.line.create":      99,
		"account.analytic.line.search_read": []any{},
	})
}

func TestLogTimeRecordsJournal(t *testing.T) {
	a := newApp(t, testConfig(t, erp(t).URL), Options{})

	command(a, admin, "logtime")
	text(a, admin, "web")
	click(a, admin, "tl:p:1")
	text(a, admin, "bug")
	click(a, admin, "tl:t:11")
	text(a, admin, "1,5")
	out := text(a, admin, "Fixed login")
	assert.Contains(t, out.last(), "Time entry created (ID 99)")

	entries, err := a.Journal().RecentEntries(context.Background(), admin.ChatID, admin.UserID, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, int64(99), e.OdooEntryID)
	assert.Equal(t, "Website", e.ProjectName)
	assert.Equal(t, "Bugfix", e.TaskName)
	assert.InDelta(t, 1.5, e.Hours, 1e-9)
	assert.Equal(t, "2026-10-16", e.EntryDate)

	out = command(a, admin, "history")
	assert.Contains(t, out.last(), "Website / Bugfix")
}

func TestExpiredCallback(t *testing.T) {
	a := newApp(t, testConfig(t, erp(t).URL), Options{})
	out := click(a, admin, "tl:p:1")
	assert.Equal(t, "This entry has expired. Start again with /logtime.", out.last())
}

func TestAdminOnlyScript(t *testing.T) {
	a := newApp(t, testConfig(t, erp(t).URL), Options{})
	out := command(a, guest, "deploy")
	assert.Equal(t, "⛔ This command is restricted to the bot admin.", out.last())
}

func TestVoiceDisabledByDefault(t *testing.T) {
	a := newApp(t, testConfig(t, erp(t).URL), Options{})
	out := send(a, admin, dispatch.Request{Kind: dispatch.KindVoice, Audio: &dispatch.Audio{Load: func(context.Context) ([]byte, error) { return nil, nil }}})
	assert.Contains(t, out.last(), "Voice commands are not configured")
}

type stubModel struct {
	mu      sync.Mutex
	prompts []string
}

func (m *stubModel) Complete(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return "ping", nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "are you there", nil
}

func TestVoiceRunsCommand(t *testing.T) {
	cfg := testConfig(t, erp(t).URL)
	cfg.LLM.VoiceEnabled = true
	cfg.LLM.APIKey = "gemini-key"
	model := &stubModel{}
	a := newApp(t, cfg, Options{Model: model, Transcriber: stubTranscriber{}})

	out := send(a, admin, dispatch.Request{Kind: dispatch.KindVoice, Audio: &dispatch.Audio{
		MIME: "audio/ogg",
		Load: func(context.Context) ([]byte, error) { return []byte("OggS"), nil },
	}})
	assert.Equal(t, "🏓 Pong! Bot is alive and responding.", out.last())

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "- summary:")
	assert.NotContains(t, model.prompts[0], "- help:")
	assert.NotContains(t, model.prompts[0], "- cancel:")
	assert.NotContains(t, model.prompts[0], "- deploy:")

	voices, err := a.Journal().RecentVoice(context.Background(), admin.ChatID, admin.UserID, 5)
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "ping", voices[0].Command)
}

func TestJournalDisabled(t *testing.T) {
	cfg := testConfig(t, erp(t).URL)
	cfg.Database.Enabled = false
	a := newApp(t, cfg, Options{})
	assert.Nil(t, a.Journal())
	_, ok := a.Dispatcher().Registry().Lookup("history")
	assert.False(t, ok)
}

func TestRunOptionsAndNotifyLifecycle(t *testing.T) {
	cfg := testConfig(t, erp(t).URL)
	cfg.Notify = config.NotifyConfig{Listen: "127.0.0.1:0", Token: "tok"}
	a := newApp(t, cfg, Options{})

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, a.Queue(), opts.Sender)
	assert.Same(t, a.Dispatcher(), opts.Dispatcher)
	assert.NotEmpty(t, opts.Routes)
	assert.NotEmpty(t, opts.Middlewares)

	bot, err := coretelegram.NewBot(cfg.CoreConfig(), coretelegram.BotOptions{Offline: true})
	require.NoError(t, err)
	rt := coretelegram.Runtime{Bot: bot, Sender: a.Queue(), Dispatcher: a.Dispatcher()}
	require.NoError(t, opts.OnStart(context.Background(), rt))

	addr := a.NotifyAddr()
	require.NotEmpty(t, addr)
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/notify", strings.NewReader(`{"text":"x"}`))
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, opts.OnStop(context.Background(), rt))
	assert.Empty(t, a.NotifyAddr())
}
