package intent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/timebot/core/errs"
)

type fakeModel struct {
	answer string
	err    error
	system string
	prompt string
}

func (m *fakeModel) Complete(_ context.Context, system, prompt string) (string, error) {
	m.system, m.prompt = system, prompt
	return m.answer, m.err
}

func commands() []Command {
	return []Command{
		{Name: "ping", Description: "Test bot connection"},
		{Name: "timeweek", Description: "Show weekly time summary"},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ping":             "ping",
		"  /TimeWeek. ":    "timeweek",
		`"status"`:         "status",
		"'none'":           "none",
		"**summary**":      "summary",
		"joke\nbecause...": "joke",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestRecognizeMatch(t *testing.T) {
	m := &fakeModel{answer: "/timeweek"}
	name, ok, err := NewRecognizer(m, commands).Recognize(context.Background(), "how many hours this week")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "timeweek", name)
	assert.Equal(t, SystemPrompt, m.system)
	assert.Contains(t, m.prompt, `"how many hours this week"`)
	assert.Contains(t, m.prompt, "- ping: Test bot connection\n")
}

func TestRecognizeNoMatch(t *testing.T) {
	for _, answer := range []string{"none", "deploy", ""} {
		name, ok, err := NewRecognizer(&fakeModel{answer: answer}, commands).Recognize(context.Background(), "hello there")
		require.NoError(t, err)
		assert.False(t, ok, "answer %q", answer)
		assert.Empty(t, name)
	}
}

func TestRecognizeEmptyText(t *testing.T) {
	m := &fakeModel{answer: "ping"}
	_, ok, err := NewRecognizer(m, commands).Recognize(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, m.prompt)
}

func TestRecognizeModelError(t *testing.T) {
	_, _, err := NewRecognizer(&fakeModel{err: errors.New("quota")}, commands).Recognize(context.Background(), "ping")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindExternal))
}

func geminiServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": reply}}},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiComplete(t *testing.T) {
	var seen map[string]any
	srv := geminiServer(t, " ping \n", &seen)
	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := g.Complete(context.Background(), SystemPrompt, "say ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", out)
	assert.Contains(t, seen, "systemInstruction")
	assert.Contains(t, seen, "contents")
}

func TestGeminiTranscribe(t *testing.T) {
	srv := geminiServer(t, "show my week", nil)
	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := g.Transcribe(context.Background(), []byte{1, 2, 3}, "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "show my week", out)

	_, err = g.Transcribe(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestNewGeminiNeedsKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiOptions{})
	assert.Error(t, err)
}
