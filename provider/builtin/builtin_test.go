package builtin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/translate"
)

type fakeService struct {
	detect      string
	detectCode  int
	translate   string
	translateFn func(body map[string]any)
	calls       atomic.Int32
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	switch r.URL.Path {
	case "/languages":
		_, _ = io.WriteString(w, `[{"code":"en","name":"English"},{"code":"ja","name":"Japanese"},{"code":"de","name":"German"}]`)
	case "/detect":
		if f.detectCode != 0 {
			http.Error(w, "detector offline", f.detectCode)
			return
		}
		_, _ = io.WriteString(w, f.detect)
	case "/translate":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.translateFn != nil {
			f.translateFn(body)
		}
		_, _ = io.WriteString(w, f.translate)
	default:
		http.NotFound(w, r)
	}
}

func newProvider(t *testing.T, f *fakeService, extra map[string]any) *Provider {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	settings := map[string]any{"endpoint": srv.URL + "/", "apiKey": "k"}
	for k, v := range extra {
		settings[k] = v
	}
	cfg := config.Default()
	cfg.BackendSettings[config.BackendChromeAPI] = settings

	p := New()
	require.NoError(t, p.Initialize(cfg))
	return p
}

func TestTranslateWithDetection(t *testing.T) {
	var sent map[string]any
	f := &fakeService{
		detect:      `[{"language":"fr","confidence":40},{"language":"es","confidence":92.5}]`,
		translate:   `{"translatedText":"Hello"}`,
		translateFn: func(b map[string]any) { sent = b },
	}
	p := newProvider(t, f, nil)

	out, err := p.Translate(context.Background(), translate.Request{Text: "Hola", SourceLang: "auto", TargetLang: "en"})
	require.NoError(t, err)
	assert.Equal(t, "Hello", out.Text)
	assert.Equal(t, ModelID, out.ModelID)
	assert.Equal(t, "es", out.DetectedSourceLanguage)
	assert.InDelta(t, 92.5, out.Confidence, 1e-9)
	assert.False(t, out.UsedFallback)

	assert.Equal(t, "es", sent["source"])
	assert.Equal(t, "en", sent["target"])
	assert.Equal(t, "k", sent["api_key"])
}

func TestDetectEmptyUsesFallbackLanguage(t *testing.T) {
	p := newProvider(t, &fakeService{detect: `[]`}, map[string]any{"fallbackLanguage": "ja"})

	d, err := p.Detect(context.Background(), "???")
	require.NoError(t, err)
	assert.Equal(t, Detection{Language: "ja", Confidence: 0}, d)
}

func TestDetectOnly(t *testing.T) {
	f := &fakeService{detect: `[{"language":"de","confidence":88}]`}
	p := newProvider(t, f, map[string]any{"detectOnly": true})

	out, err := p.Translate(context.Background(), translate.Request{Text: "Guten Tag", SourceLang: "auto", TargetLang: "en"})
	require.NoError(t, err)
	assert.Equal(t, "Guten Tag", out.Text)
	assert.Equal(t, "de", out.DetectedSourceLanguage)
	assert.EqualValues(t, 1, f.calls.Load(), "no translate call in detect-only mode")
}

func TestDetectionFailureHasNoFallback(t *testing.T) {
	f := &fakeService{detectCode: http.StatusServiceUnavailable}
	p := newProvider(t, f, nil)

	_, err := p.Translate(context.Background(), translate.Request{Text: "Hola", SourceLang: "auto", TargetLang: "en"})
	assert.ErrorIs(t, err, translate.ErrDetection)
	assert.NotContains(t, err.Error(), "detector offline")
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestTranslateKnownSourceSkipsDetection(t *testing.T) {
	f := &fakeService{translate: `{"translatedText":"こんにちは"}`}
	p := newProvider(t, f, nil)

	out, err := p.Translate(context.Background(), translate.Request{Text: "Hello", SourceLang: "en", TargetLang: "ja"})
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", out.Text)
	assert.Empty(t, out.DetectedSourceLanguage)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestTranslateEmptyKeepsDetectedLanguage(t *testing.T) {
	f := &fakeService{
		detect:    `[{"language":"es","confidence":90}]`,
		translate: `{"translatedText":"  "}`,
	}
	p := newProvider(t, f, nil)

	_, err := p.Translate(context.Background(), translate.Request{Text: "Hola", SourceLang: "auto", TargetLang: "en"})
	require.Error(t, err)
	assert.ErrorIs(t, err, translate.ErrEmptyResponse)

	var te *translate.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "es", te.DetectedSourceLanguage)
}

func TestCheckStatus(t *testing.T) {
	p := newProvider(t, &fakeService{}, nil)
	st := p.CheckStatus(context.Background())
	assert.True(t, st.OK())
	assert.Contains(t, st.Message, "3 languages")
}

func TestUninitialized(t *testing.T) {
	p := New()
	_, err := p.Translate(context.Background(), translate.Request{Text: "x", TargetLang: "en"})
	assert.ErrorIs(t, err, translate.ErrNotReady)

	cfg := config.Default()
	cfg.BackendSettings[config.BackendChromeAPI] = map[string]any{"endpoint": ""}
	require.Error(t, p.Initialize(cfg))
	_, err = p.Translate(context.Background(), translate.Request{Text: "x", TargetLang: "en"})
	assert.ErrorIs(t, err, translate.ErrConfiguration)
	assert.Equal(t, translate.StateError, p.CheckStatus(context.Background()).State)
}
