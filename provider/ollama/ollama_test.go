package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/translate"
)

// fakeOllama answers /api/generate per model name and /api/tags.
type fakeOllama struct {
	mu      sync.Mutex
	answers map[string]func(w http.ResponseWriter)
	bodies  []string
}

func (f *fakeOllama) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		_, _ = io.WriteString(w, `{"models":[{"name":"ModelX"},{"name":"ModelY"}]}`)
	case "/api/generate":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		answer := f.answers[gjson.GetBytes(body, "model").String()]
		f.mu.Unlock()
		if answer == nil {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		answer(w)
	default:
		http.NotFound(w, r)
	}
}

func reply(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { _, _ = io.WriteString(w, body) }
}

func status(code int) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { http.Error(w, "internal failure details", code) }
}

func newServer(t *testing.T, answers map[string]func(http.ResponseWriter)) (*fakeOllama, *httptest.Server) {
	t.Helper()
	f := &fakeOllama{answers: answers}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return f, srv
}

func configFor(endpoint string) *config.Configuration {
	cfg := config.Default()
	cfg.BackendSettings[config.BackendOllama] = map[string]any{
		"temperature":     0.2,
		"fallbackModelId": "ModelY",
		"models": []any{
			map[string]any{"id": "ModelD", "endpoint": endpoint, "isDefault": true},
			map[string]any{"id": "ModelX", "endpoint": endpoint},
			map[string]any{"id": "ModelY", "endpoint": endpoint},
		},
		"languagePairPreferences": []any{
			map[string]any{"source": "en", "target": "ja", "preferredModelId": "ModelX"},
		},
	}
	return cfg
}

func newProvider(t *testing.T, endpoint string) *Provider {
	t.Helper()
	p := New(nil)
	require.NoError(t, p.Initialize(configFor(endpoint)))
	return p
}

var hello = translate.Request{Text: "Hello", SourceLang: "en", TargetLang: "ja", Style: "natural"}

// ---------------------------------------------------------------------------
// Translate
// ---------------------------------------------------------------------------

func TestTranslatePreferredModel(t *testing.T) {
	f, srv := newServer(t, map[string]func(http.ResponseWriter){
		"ModelX": reply(`{"model":"ModelX","response":"Here is the translation: \"こんにちは\"","done":true}`),
	})
	p := newProvider(t, srv.URL+"/api/generate")

	out, err := p.Translate(context.Background(), hello)
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", out.Text)
	assert.Equal(t, "ModelX", out.ModelID)
	assert.False(t, out.UsedFallback)

	require.Len(t, f.bodies, 1)
	body := f.bodies[0]
	assert.False(t, gjson.Get(body, "stream").Bool())
	assert.InDelta(t, 0.2, gjson.Get(body, "options.temperature").Float(), 1e-9)
	assert.Contains(t, gjson.Get(body, "prompt").String(), "Hello")
}

func TestTranslateFallsBack(t *testing.T) {
	f, srv := newServer(t, map[string]func(http.ResponseWriter){
		"ModelX": status(http.StatusInternalServerError),
		"ModelY": reply(`{"response":"こんにちは"}`),
	})
	p := newProvider(t, srv.URL+"/api/generate")

	out, err := p.Translate(context.Background(), hello)
	require.NoError(t, err)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, "ModelY", out.ModelID)
	assert.Len(t, f.bodies, 2)
}

func TestTranslateBothFail(t *testing.T) {
	_, srv := newServer(t, map[string]func(http.ResponseWriter){
		"ModelX": status(http.StatusInternalServerError),
		"ModelY": reply(`{"response":"   "}`),
	})
	p := newProvider(t, srv.URL+"/api/generate")

	_, err := p.Translate(context.Background(), hello)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModelX")
	assert.Contains(t, err.Error(), "ModelY")
	assert.NotContains(t, err.Error(), "internal failure details")
	assert.ErrorIs(t, err, translate.ErrNonSuccessStatus)
	assert.ErrorIs(t, err, translate.ErrEmptyResponse)
}

func TestTranslateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/generate"
	srv.Close()

	p := newProvider(t, endpoint)
	_, err := p.Translate(context.Background(), hello)
	assert.ErrorIs(t, err, translate.ErrNetwork)
}

func TestInitializeWithBadSettings(t *testing.T) {
	cfg := config.Default()
	cfg.BackendSettings[config.BackendOllama] = map[string]any{"models": []any{map[string]any{"id": "x"}}}

	p := New(nil)
	err := p.Initialize(cfg)
	require.Error(t, err)

	_, err = p.Translate(context.Background(), hello)
	assert.ErrorIs(t, err, translate.ErrConfiguration)
	assert.Equal(t, translate.StateError, p.CheckStatus(context.Background()).State)
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		body    string
		want    string
		wantErr bool
	}{
		{`{"response":"a"}`, "a", false},
		{`{"message":{"role":"assistant","content":"b"}}`, "b", false},
		{`{"choices":[{"message":{"content":"c"}}]}`, "c", false},
		{`{"error":"model not loaded"}`, "", true},
		{`{"error":{"message":"quota"}}`, "", true},
		{`{"done":true}`, "", true},
		{`not json`, "", true},
	}
	for _, tc := range tests {
		got, err := extractText([]byte(tc.body))
		if tc.wantErr {
			assert.Error(t, err, tc.body)
			continue
		}
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, got)
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestCheckStatus(t *testing.T) {
	_, srv := newServer(t, nil)
	p := newProvider(t, srv.URL+"/api/generate")

	st := p.CheckStatus(context.Background())
	assert.True(t, st.OK())
	assert.Contains(t, st.Message, "2 models")
}

func TestCheckStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/generate"
	srv.Close()

	st := newProvider(t, endpoint).CheckStatus(context.Background())
	assert.Equal(t, translate.StateError, st.State)
	assert.NotEmpty(t, st.Message)
}

func TestCheckModelStatus(t *testing.T) {
	f, srv := newServer(t, map[string]func(http.ResponseWriter){
		"ModelX": reply(`{"response":"","done":true}`),
	})
	p := newProvider(t, srv.URL+"/api/generate")

	assert.True(t, p.CheckModelStatus(context.Background(), "ModelX").OK())
	require.Len(t, f.bodies, 1)
	assert.Equal(t, "", gjson.Get(f.bodies[0], "prompt").String())

	assert.Equal(t, translate.StateError, p.CheckModelStatus(context.Background(), "ModelY").State)
	assert.Equal(t, translate.StateError, p.CheckModelStatus(context.Background(), "Nope").State)
}

func TestServerOrigin(t *testing.T) {
	o, err := serverOrigin("http://localhost:11434/api/generate")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434", o)

	_, err = serverOrigin("localhost:11434")
	assert.Error(t, err)
}
