// Package builtin is the built-in capability provider. It uses a
// LibreTranslate-compatible system translation service for language
// detection and translation, and exposes a single logical model.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/langmeta"
	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/translate"
)

// ModelID is reported as the producer of every built-in translation.
const ModelID = config.BackendChromeAPI

// DefaultTimeout applies when the settings carry no timeoutSeconds.
const DefaultTimeout = 30 * time.Second

const errorBodyLimit = 200

// Provider is the built-in capability provider. Like the local-model
// provider it is immutable after Initialize.
type Provider struct {
	client   *resty.Client
	settings *config.BuiltinSettings
	initErr  error
}

// New creates an uninitialized provider.
func New() *Provider {
	return &Provider{client: resty.New().SetTimeout(DefaultTimeout)}
}

// Initialize extracts the chromeApi settings slice. Invalid settings leave
// the provider unconfigured; calls then fail with a readable message.
func (p *Provider) Initialize(cfg *config.Configuration) error {
	s, err := cfg.Builtin()
	if err != nil {
		p.settings = nil
		p.initErr = translate.NewError(translate.KindConfiguration,
			i18n.T("The built-in translation backend is not configured correctly"), err)
		return p.initErr
	}
	p.settings = s
	p.initErr = nil
	p.client.SetBaseURL(strings.TrimRight(s.Endpoint, "/")).SetTimeout(s.Timeout(DefaultTimeout))
	return nil
}

func (p *Provider) ready() error {
	if p.settings != nil {
		return nil
	}
	if p.initErr != nil {
		return p.initErr
	}
	return translate.NewError(translate.KindNotReady, i18n.T("The built-in translation backend is not initialized"), nil)
}

// ---------------------------------------------------------------------------
// Detection
// ---------------------------------------------------------------------------

// Detection is one detected language candidate.
type Detection struct {
	Language   string
	Confidence float64
}

// Detect returns the highest-confidence language of text. An empty
// candidate list yields the configured fallback language with confidence 0.
func (p *Provider) Detect(ctx context.Context, text string) (Detection, error) {
	if err := p.ready(); err != nil {
		return Detection{}, err
	}
	resp, err := p.request(ctx).
		SetBody(p.withKey(map[string]any{"q": text})).
		Post("/detect")
	if err != nil {
		return Detection{}, translate.NewError(translate.KindDetection,
			i18n.T("Language detection is unavailable"), err)
	}
	if resp.IsError() {
		return Detection{}, translate.NewError(translate.KindDetection,
			i18n.Tf("Language detection failed with HTTP %d", resp.StatusCode()),
			fmt.Errorf("%s: %s", resp.Status(), translate.Truncate(resp.String(), errorBodyLimit)))
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsArray() {
		return Detection{}, translate.NewError(translate.KindDetection,
			i18n.T("Language detection returned an unreadable response"), nil)
	}

	best := Detection{Language: p.settings.FallbackLanguage}
	found := false
	gjson.ParseBytes(body).ForEach(func(_, v gjson.Result) bool {
		lang := strings.TrimSpace(v.Get("language").String())
		conf := v.Get("confidence").Float()
		if lang != "" && (!found || conf > best.Confidence) {
			best = Detection{Language: lang, Confidence: conf}
			found = true
		}
		return true
	})
	return best, nil
}

// ---------------------------------------------------------------------------
// Translate
// ---------------------------------------------------------------------------

// Translate detects the source when it is auto, then translates. In
// detect-only mode the original text comes back with the detected language.
// Detection failures have no fallback.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Output, error) {
	if err := p.ready(); err != nil {
		return translate.Output{}, err
	}
	req, err := req.Normalize()
	if err != nil {
		return translate.Output{}, err
	}
	log := logging.FromContext(ctx).WithField("backend", ModelID)

	out := translate.Output{ModelID: ModelID}
	src := req.SourceLang
	if langmeta.IsAuto(src) {
		d, err := p.Detect(ctx, req.Text)
		if err != nil {
			return translate.Output{}, err
		}
		src = d.Language
		out.DetectedSourceLanguage = d.Language
		out.Confidence = d.Confidence
		log.WithField("detected", d.Language).Debugf("detected source language (confidence %.2f)", d.Confidence)
	}

	if p.settings.DetectOnly {
		out.Text = req.Text
		return out, nil
	}
	if src == req.TargetLang {
		out.Text = req.Text
		return out, nil
	}

	resp, err := p.request(ctx).
		SetBody(p.withKey(map[string]any{
			"q":      req.Text,
			"source": src,
			"target": req.TargetLang,
			"format": "text",
		})).
		Post("/translate")
	if err != nil {
		return translate.Output{}, &translate.Error{
			Kind:                   translate.KindNetwork,
			Message:                i18n.T("The translation service could not be reached"),
			Err:                    err,
			DetectedSourceLanguage: out.DetectedSourceLanguage,
		}
	}
	if resp.IsError() {
		return translate.Output{}, &translate.Error{
			Kind:                   translate.KindNonSuccessStatus,
			Message:                i18n.Tf("The translation service returned HTTP %d", resp.StatusCode()),
			Err:                    fmt.Errorf("%s: %s", resp.Status(), translate.Truncate(resp.String(), errorBodyLimit)),
			DetectedSourceLanguage: out.DetectedSourceLanguage,
		}
	}

	out.Text = strings.TrimSpace(gjson.GetBytes(resp.Body(), "translatedText").String())
	if out.Text == "" {
		return translate.Output{}, &translate.Error{
			Kind:                   translate.KindEmptyResponse,
			Message:                i18n.T("The translation service returned an empty response"),
			DetectedSourceLanguage: out.DetectedSourceLanguage,
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// CheckStatus lists the languages the service supports.
func (p *Provider) CheckStatus(ctx context.Context) translate.Status {
	if err := p.ready(); err != nil {
		return translate.Failed(translate.UserMessage(err))
	}
	resp, err := p.request(ctx).Get("/languages")
	if err != nil {
		return translate.Failed(i18n.Tf("Cannot connect to %s", p.settings.Endpoint))
	}
	if resp.IsError() {
		return translate.Failed(i18n.Tf("%s returned HTTP %d", p.settings.Endpoint, resp.StatusCode()))
	}
	n := gjson.GetBytes(resp.Body(), "#").Int()
	return translate.Running(i18n.Tf("Built-in translation available (%d languages)", n))
}

func (p *Provider) request(ctx context.Context) *resty.Request {
	return p.client.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
}

func (p *Provider) withKey(body map[string]any) map[string]any {
	if p.settings.APIKey != "" {
		body["api_key"] = p.settings.APIKey
	}
	return body
}
