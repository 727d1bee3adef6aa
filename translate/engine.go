package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/langmeta"
	"github.com/minios-linux/glosa/logging"
)

// ---------------------------------------------------------------------------
// Model resolution
// ---------------------------------------------------------------------------

// ResolveModel picks the preferred model for a language pair: an exact
// pair preference whose model exists, else the default model. An auto
// source always gets the default model. ok is false only when no models
// are configured.
func ResolveModel(s *config.LocalModelSettings, src, tgt string) (model config.ModelDescriptor, ok bool) {
	if s == nil {
		return config.ModelDescriptor{}, false
	}
	if !langmeta.IsAuto(src) {
		for _, p := range s.LanguagePairPreferences {
			if p.Source == src && p.Target == tgt {
				if m, found := s.FindModel(p.PreferredModelID); found {
					return m, true
				}
				break
			}
		}
	}
	return s.DefaultModel()
}

// ResolveFallback returns the configured fallback model if it exists, else
// the default model.
func ResolveFallback(s *config.LocalModelSettings) (config.ModelDescriptor, bool) {
	if s == nil {
		return config.ModelDescriptor{}, false
	}
	if m, ok := s.FindModel(s.FallbackModelID); ok {
		return m, true
	}
	return s.DefaultModel()
}

// ---------------------------------------------------------------------------
// Engine
// ---------------------------------------------------------------------------

// AttemptFunc performs one request against one model and returns the
// cleaned response text.
type AttemptFunc func(ctx context.Context, model config.ModelDescriptor, prompt string) (string, error)

// DefaultPrimaryShare is the part of the remaining deadline the primary
// attempt may use when a distinct fallback model exists.
const DefaultPrimaryShare = 0.6

// Engine runs the primary attempt and at most one fallback attempt.
type Engine struct {
	// OnAttempt, when set, observes every attempt.
	OnAttempt func(modelID string, fallback bool, d time.Duration, err error)

	// PrimaryShare overrides DefaultPrimaryShare. Values outside (0, 1]
	// use the default.
	PrimaryShare float64
}

// Translate resolves the preferred model, attempts it, and on any failure
// retries once with the fallback model when its id differs. When both
// attempts fail, or there is no distinct fallback, one *Error naming both
// ids is returned.
func (e *Engine) Translate(ctx context.Context, s *config.LocalModelSettings, req Request, attempt AttemptFunc) (Output, error) {
	req, err := req.Normalize()
	if err != nil {
		return Output{}, err
	}
	logger := logging.FromContext(ctx)

	preferred, ok := ResolveModel(s, req.SourceLang, req.TargetLang)
	if !ok {
		return Output{}, NewError(KindConfiguration, i18n.T("No models are configured for the local model backend"), nil)
	}

	fallback, ok := ResolveFallback(s)
	if !ok {
		fallback = preferred
	}

	primaryCtx, cancel := ctx, context.CancelFunc(func() {})
	if fallback.ID != preferred.ID {
		primaryCtx, cancel = e.primaryContext(ctx)
	}
	text, primaryErr := e.try(primaryCtx, preferred, false, req, attempt)
	cancel()
	if primaryErr == nil {
		return Output{Text: text, ModelID: preferred.ID}, nil
	}
	logger.WithError(primaryErr).WithField("model", preferred.ID).Warn("primary model failed")

	if fallback.ID == preferred.ID {
		return Output{}, &Error{
			Kind:    KindOf(primaryErr),
			Message: i18n.Tf("Translation failed with %s and fallback %s: %s", preferred.ID, fallback.ID, UserMessage(primaryErr)),
			Err:     primaryErr,
		}
	}

	logger.WithField("model", fallback.ID).Info("retrying with fallback model")
	text, fallbackErr := e.try(ctx, fallback, true, req, attempt)
	if fallbackErr == nil {
		return Output{Text: text, ModelID: fallback.ID, UsedFallback: true}, nil
	}
	logger.WithError(fallbackErr).WithField("model", fallback.ID).Warn("fallback model failed")

	return Output{}, &Error{
		Kind: KindOf(fallbackErr),
		Message: i18n.Tf("Translation failed with %s (%s) and fallback %s (%s)",
			preferred.ID, UserMessage(primaryErr), fallback.ID, UserMessage(fallbackErr)),
		Err: errors.Join(primaryErr, fallbackErr),
	}
}

// primaryContext caps the primary attempt so a hung model leaves the
// fallback part of the caller's deadline.
func (e *Engine) primaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ctx, func() {}
	}
	share := DefaultPrimaryShare
	if e != nil && e.PrimaryShare > 0 && e.PrimaryShare <= 1 {
		share = e.PrimaryShare
	}
	return context.WithTimeout(ctx, time.Duration(float64(time.Until(deadline))*share))
}

func (e *Engine) try(ctx context.Context, model config.ModelDescriptor, fallback bool, req Request, attempt AttemptFunc) (string, error) {
	start := time.Now()
	text, err := attempt(ctx, model, FormatPrompt(model, req.Style, req))
	if err == nil && strings.TrimSpace(text) == "" {
		err = NewError(KindEmptyResponse, i18n.Tf("Model %s returned an empty response", model.ID), nil)
	}
	if err != nil && KindOf(err) == "" {
		err = NewError(KindNetwork, i18n.Tf("Model %s could not be reached", model.ID), err)
	}
	if e != nil && e.OnAttempt != nil {
		e.OnAttempt(model.ID, fallback, time.Since(start), err)
	}
	return text, err
}
