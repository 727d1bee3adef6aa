// Package ollama is the local-model provider. It talks to one or more
// Ollama-compatible generate endpoints and selects a model per language
// pair through the translate engine.
package ollama

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/translate"
)

// DefaultTimeout applies when the settings carry no timeoutSeconds.
const DefaultTimeout = 30 * time.Second

// errorBodyLimit bounds how much of an error body reaches the logs.
const errorBodyLimit = 200

// Provider is a local-model provider. It is configured once by Initialize
// and not modified afterwards; a configuration change builds a new one.
type Provider struct {
	client   *resty.Client
	engine   *translate.Engine
	settings *config.LocalModelSettings
	initErr  error
}

// New creates an uninitialized provider. A nil engine uses a plain one.
func New(engine *translate.Engine) *Provider {
	if engine == nil {
		engine = &translate.Engine{}
	}
	return &Provider{
		client:   resty.New().SetTimeout(DefaultTimeout),
		engine:   engine,
		settings: &config.LocalModelSettings{},
	}
}

// Initialize extracts the ollama settings slice. On missing or invalid
// settings it keeps an empty model list, so every later call fails with a
// readable error, and returns the diagnostic.
func (p *Provider) Initialize(cfg *config.Configuration) error {
	s, err := cfg.LocalModel()
	if err != nil {
		p.settings = &config.LocalModelSettings{}
		p.initErr = translate.NewError(translate.KindConfiguration,
			i18n.T("The local model backend is not configured correctly"), err)
		return p.initErr
	}
	p.settings = s
	p.initErr = nil
	p.client.SetTimeout(s.Timeout(DefaultTimeout))
	return nil
}

// Settings returns the active settings slice.
func (p *Provider) Settings() *config.LocalModelSettings { return p.settings }

// ---------------------------------------------------------------------------
// Translate
// ---------------------------------------------------------------------------

// Translate runs the engine's primary/fallback policy against the
// configured models.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Output, error) {
	if len(p.settings.Models) == 0 && p.initErr != nil {
		return translate.Output{}, p.initErr
	}
	return p.engine.Translate(ctx, p.settings, req, p.generate)
}

// generate performs one non-streaming generate call.
func (p *Provider) generate(ctx context.Context, model config.ModelDescriptor, prompt string) (string, error) {
	body, err := requestBody(model.ID, prompt, p.settings.Temperature)
	if err != nil {
		return "", err
	}

	logging.FromContext(ctx).WithField("model", model.ID).Debugf("POST %s", model.Endpoint)
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(model.Endpoint)
	if err != nil {
		return "", translate.NewError(translate.KindNetwork,
			i18n.Tf("Model %s could not be reached", model.ID), err)
	}
	if resp.IsError() {
		return "", translate.NewError(translate.KindNonSuccessStatus,
			i18n.Tf("Model %s returned HTTP %d", model.ID, resp.StatusCode()),
			fmt.Errorf("%s: %s", resp.Status(), translate.Truncate(resp.String(), errorBodyLimit)))
	}

	raw, err := extractText(resp.Body())
	if err != nil {
		return "", translate.NewError(translate.KindEmptyResponse,
			i18n.Tf("Model %s returned an unreadable response", model.ID), err)
	}
	text := translate.CleanResponse(raw)
	if text == "" {
		return "", translate.NewError(translate.KindEmptyResponse,
			i18n.Tf("Model %s returned an empty response", model.ID), nil)
	}
	return text, nil
}

func requestBody(model, prompt string, temperature float64) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "model", model)
	if err == nil {
		body, err = sjson.SetBytes(body, "prompt", prompt)
	}
	if err == nil {
		body, err = sjson.SetBytes(body, "stream", false)
	}
	if err == nil && temperature > 0 {
		body, err = sjson.SetBytes(body, "options.temperature", temperature)
	}
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}
	return body, nil
}

// extractText accepts the Ollama generate, Ollama chat and OpenAI chat
// response shapes.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON response: %s", translate.Truncate(string(body), errorBodyLimit))
	}
	if msg := gjson.GetBytes(body, "error"); msg.Exists() {
		if m := msg.Get("message"); m.Exists() {
			return "", fmt.Errorf("API error: %s", m.String())
		}
		return "", fmt.Errorf("API error: %s", msg.String())
	}
	for _, path := range []string{"response", "message.content", "choices.0.message.content"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
			return r.String(), nil
		}
	}
	return "", fmt.Errorf("could not extract text from response: %s", translate.Truncate(string(body), errorBodyLimit))
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// CheckStatus lists the installed models on the default model's server.
func (p *Provider) CheckStatus(ctx context.Context) translate.Status {
	model, ok := p.settings.DefaultModel()
	if !ok {
		if p.initErr != nil {
			return translate.Failed(translate.UserMessage(p.initErr))
		}
		return translate.Failed(i18n.T("No models are configured for the local model backend"))
	}
	origin, err := serverOrigin(model.Endpoint)
	if err != nil {
		return translate.Failed(i18n.Tf("Invalid endpoint for model %s", model.ID))
	}

	resp, err := p.client.R().SetContext(ctx).Get(origin + "/api/tags")
	if err != nil {
		logging.FromContext(ctx).WithError(err).Debug("ollama status check failed")
		return translate.Failed(i18n.Tf("Cannot connect to %s", origin))
	}
	if resp.IsError() {
		return translate.Failed(i18n.Tf("%s returned HTTP %d", origin, resp.StatusCode()))
	}
	n := gjson.GetBytes(resp.Body(), "models.#").Int()
	return translate.Running(i18n.Tf("Connected to %s (%d models installed)", origin, n))
}

// CheckModelStatus sends an empty prompt to one model, which loads it
// without generating.
func (p *Provider) CheckModelStatus(ctx context.Context, modelID string) translate.Status {
	model, ok := p.settings.FindModel(modelID)
	if !ok {
		return translate.Failed(i18n.Tf("Unknown model %s", modelID))
	}
	body, err := requestBody(model.ID, "", 0)
	if err != nil {
		return translate.Failed(err.Error())
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(model.Endpoint)
	if err != nil {
		return translate.Failed(i18n.Tf("Model %s could not be reached", model.ID))
	}
	if resp.IsError() {
		return translate.Failed(i18n.Tf("Model %s returned HTTP %d", model.ID, resp.StatusCode()))
	}
	return translate.Running(i18n.Tf("Model %s is available", model.Label()))
}

// serverOrigin reduces a generate endpoint to scheme://host.
func serverOrigin(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no scheme or host", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
