// Package coordinator owns the active configuration and provider session
// and answers the translation message contract. Every failure comes back
// as a result value; no request can take the coordinator down.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/minios-linux/glosa/cache"
	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/metrics"
	"github.com/minios-linux/glosa/provider"
	"github.com/minios-linux/glosa/translate"
)

// State is the coordinator lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateReloading     State = "reloading"
	// StateError is the partial-failure state: requests are still answered,
	// possibly with explicit failures.
	StateError State = "error"
)

var allStates = []string{
	string(StateUninitialized), string(StateLoading), string(StateReady),
	string(StateReloading), string(StateError),
}

// Default timeouts.
const (
	DefaultTranslateTimeout = 30 * time.Second
	DefaultStatusTimeout    = 5 * time.Second
)

// session is one immutable (configuration, provider) pair. It is replaced
// wholesale; a request keeps the session it started with.
type session struct {
	cfg        *config.Configuration
	provider   provider.Provider
	backend    string
	generation uint64
}

// Options configures a Coordinator.
type Options struct {
	Store            *config.Store
	Cache            cache.Cache
	Metrics          *metrics.Metrics
	TranslateTimeout time.Duration
	StatusTimeout    time.Duration
}

// Coordinator dispatches requests to the active session.
type Coordinator struct {
	store   *config.Store
	cache   cache.Cache
	metrics *metrics.Metrics
	engine  *translate.Engine

	translateTimeout time.Duration
	statusTimeout    time.Duration

	current    atomic.Pointer[session]
	generation atomic.Uint64

	// reloadMu serializes Start, reloads and config mutations. Reads never
	// take it.
	reloadMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	lastErr error
	onState func(State) // observes every transition; tests only
}

// New creates a coordinator in the uninitialized state. Until Start
// completes it serves the hardcoded default configuration and refuses
// translations with an explicit failure.
func New(opts Options) *Coordinator {
	if opts.Store == nil {
		opts.Store = config.NewStore(config.StoreOptions{})
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.TranslateTimeout <= 0 {
		opts.TranslateTimeout = DefaultTranslateTimeout
	}
	if opts.StatusTimeout <= 0 {
		opts.StatusTimeout = DefaultStatusTimeout
	}

	c := &Coordinator{
		store:            opts.Store,
		cache:            opts.Cache,
		metrics:          opts.Metrics,
		translateTimeout: opts.TranslateTimeout,
		statusTimeout:    opts.StatusTimeout,
		state:            StateUninitialized,
	}
	c.engine = &translate.Engine{
		OnAttempt: func(model string, _ bool, d time.Duration, err error) {
			c.metrics.ObserveAttempt(model, d, err)
		},
	}
	c.current.Store(&session{cfg: config.Default()})
	c.metrics.SetState(string(StateUninitialized), allStates)
	return c
}

// Store returns the configuration store.
func (c *Coordinator) Store() *config.Store { return c.store }

// State returns the current state and, in the error state, its cause.
func (c *Coordinator) State() (State, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state, c.lastErr
}

func (c *Coordinator) setState(s State, err error) {
	c.stateMu.Lock()
	c.state = s
	c.lastErr = err
	c.stateMu.Unlock()
	c.metrics.SetState(string(s), allStates)
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Coordinator) session() *session { return c.current.Load() }

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Start loads the configuration and brings up the active provider. It
// returns the partial-failure cause when the coordinator ends up in the
// error state; the coordinator is usable either way.
func (c *Coordinator) Start(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.setState(StateLoading, nil)
	cfg, err := c.store.Load()
	return c.activate(ctx, cfg, err)
}

// Reload re-reads the configuration sources and rebuilds the session.
func (c *Coordinator) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.setState(StateReloading, nil)
	cfg, err := c.store.Load()
	return c.activate(ctx, cfg, err)
}

// WatchOverride reloads whenever the override file changes on disk.
func (c *Coordinator) WatchOverride(ctx context.Context) error {
	return c.store.Watch(ctx, func() {
		log.Info("configuration override changed on disk, reloading")
		if err := c.Reload(ctx); err != nil {
			log.WithError(err).Warn("reload finished with errors")
		}
	})
}

// activate builds a fresh provider for cfg and swaps the session. When the
// active backend is unusable it falls back to the default configuration's
// backend. Must be called with reloadMu held.
func (c *Coordinator) activate(ctx context.Context, cfg *config.Configuration, loadErr error) error {
	logger := logging.FromContext(ctx)
	var problems []error
	if loadErr != nil {
		problems = append(problems, translate.NewError(translate.KindConfigLoad, i18n.T("Configuration could not be loaded, using defaults"), loadErr))
	}

	if _, err := provider.Lookup(cfg.ActiveBackend); err != nil {
		problems = append(problems, err)
		cfg = config.Default()
	} else if !cfg.HasBackendSettings(cfg.ActiveBackend) {
		problems = append(problems, translate.NewError(translate.KindConfiguration,
			i18n.Tf("Backend %s has no settings", cfg.ActiveBackend), nil))
		cfg = config.Default()
	}

	deps := provider.Deps{Engine: c.engine}
	p, err := provider.Open(cfg.ActiveBackend, cfg, deps)
	if err != nil {
		problems = append(problems, err)
		def := config.Default()
		if dp, derr := provider.Open(def.ActiveBackend, def, deps); derr == nil {
			logger.WithField("backend", def.ActiveBackend).Warn("active backend failed to initialize, running the default backend")
			cfg, p = def, dp
		}
	}

	next := &session{
		cfg:        cfg,
		provider:   p,
		backend:    cfg.ActiveBackend,
		generation: c.generation.Add(1),
	}
	c.current.Store(next)

	if len(problems) == 0 {
		c.setState(StateReady, nil)
		logger.WithField("backend", next.backend).Infof("session %d ready", next.generation)
		return nil
	}
	joined := errors.Join(problems...)
	c.setState(StateError, joined)
	logger.WithError(joined).WithField("backend", next.backend).Warnf("session %d running with errors", next.generation)
	return joined
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// GetConfig returns the active configuration and its language catalog.
// It answers in every state.
func (c *Coordinator) GetConfig(_ context.Context) ConfigResponse {
	s := c.session()
	state, _ := c.State()
	return ConfigResponse{
		Success:         true,
		Config:          s.cfg.Clone(),
		LanguageCatalog: config.DeriveLanguageCatalog(s.cfg),
		ActiveBackend:   s.backend,
		Backends:        provider.IDs(),
		State:           string(state),
	}
}

// Translate runs one translation against the current session.
func (c *Coordinator) Translate(ctx context.Context, req translate.Request) TranslateResponse {
	s := c.session()
	ctx = logging.WithRequestID(ctx, logging.RequestID(ctx))
	logger := logging.FromContext(ctx).WithField("backend", s.backend)

	if s.provider == nil {
		c.metrics.ObserveTranslation(s.backend, metrics.OutcomeFailure, false)
		return translateFailure(translate.NewError(translate.KindNotReady,
			i18n.T("The translation service is still starting"), nil))
	}
	req, err := req.Normalize()
	if err != nil {
		return translateFailure(err)
	}

	key := cache.Key{
		Generation: s.generation,
		Backend:    s.backend,
		Source:     req.SourceLang,
		Target:     req.TargetLang,
		Style:      req.Style,
		Text:       req.Text,
	}
	if out, ok := c.cache.Get(ctx, key); ok {
		c.metrics.ObserveTranslation(s.backend, metrics.OutcomeCached, false)
		logger.Debug("served from cache")
		return translateSuccess(out)
	}

	ctx, cancel := context.WithTimeout(ctx, c.translateTimeout)
	defer cancel()

	start := time.Now()
	out, err := s.provider.Translate(ctx, req)
	if err != nil {
		c.metrics.ObserveTranslation(s.backend, metrics.OutcomeFailure, false)
		logger.WithError(err).Warnf("translation %s->%s failed after %s", req.SourceLang, req.TargetLang, time.Since(start).Round(time.Millisecond))
		return translateFailure(err)
	}

	c.cache.Set(ctx, key, out)
	c.metrics.ObserveTranslation(s.backend, metrics.OutcomeSuccess, out.UsedFallback)
	logger.WithField("model", out.ModelID).Infof("translated %s->%s in %s", req.SourceLang, req.TargetLang, time.Since(start).Round(time.Millisecond))
	return translateSuccess(out)
}

// CheckBackendStatus checks the active provider's live dependency.
func (c *Coordinator) CheckBackendStatus(ctx context.Context) StatusResponse {
	s := c.session()
	if s.provider == nil {
		return StatusResponse(translate.Failed(i18n.T("The translation service is still starting")))
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	st := s.provider.CheckStatus(ctx)
	c.metrics.ObserveStatus(s.backend, st.State)
	return StatusResponse(st)
}

// CheckModelStatus checks one model of a multi-model provider. Providers
// without individual models always report running.
func (c *Coordinator) CheckModelStatus(ctx context.Context, modelID string) StatusResponse {
	s := c.session()
	if s.provider == nil {
		return StatusResponse(translate.Failed(i18n.T("The translation service is still starting")))
	}
	checker, ok := s.provider.(provider.ModelStatusChecker)
	if !ok {
		return StatusResponse(translate.Running(i18n.T("This backend has no individual models")))
	}
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	st := checker.CheckModelStatus(ctx, modelID)
	c.metrics.ObserveStatus(s.backend, st.State)
	return StatusResponse(st)
}

// UpdateConfig validates, persists and activates cfg. The provider is
// rebuilt from the new settings whether or not the backend changed.
func (c *Coordinator) UpdateConfig(ctx context.Context, cfg *config.Configuration) AckResponse {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	if cfg == nil {
		return ackFailure(translate.NewError(translate.KindInvalidRequest, i18n.T("No configuration given"), nil))
	}
	if _, err := provider.Lookup(cfg.ActiveBackend); err != nil {
		return ackFailure(err)
	}
	if err := c.store.Update(cfg); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("configuration update rejected")
		return ackFailure(translate.NewError(translate.KindInvalidRequest,
			i18n.Tf("Configuration rejected: %s", translate.Truncate(err.Error(), 300)), err))
	}
	c.setState(StateReloading, nil)
	if err := c.activate(ctx, c.store.Current(), nil); err != nil {
		return AckResponse{Success: true, Message: translate.UserMessage(err)}
	}
	return AckResponse{Success: true}
}

// ResetConfig drops the user override and reactivates the bundled
// configuration.
func (c *Coordinator) ResetConfig(ctx context.Context) AckResponse {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	cfg, err := c.store.Reset()
	if err != nil && !errors.Is(err, config.ErrLoad) {
		return ackFailure(translate.NewError(translate.KindConfigLoad,
			i18n.T("The saved configuration could not be removed"), err))
	}
	c.setState(StateReloading, nil)
	if aerr := c.activate(ctx, cfg, err); aerr != nil {
		return AckResponse{Success: true, Message: translate.UserMessage(aerr)}
	}
	return AckResponse{Success: true}
}

// ReloadConfig re-reads the configuration sources.
func (c *Coordinator) ReloadConfig(ctx context.Context) AckResponse {
	if err := c.Reload(ctx); err != nil {
		return AckResponse{Success: true, Message: translate.UserMessage(err)}
	}
	return AckResponse{Success: true}
}

// SwitchBackend makes backend the active backend and persists the choice.
// An unknown backend leaves the current provider in place.
func (c *Coordinator) SwitchBackend(ctx context.Context, backend string) AckResponse {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	if _, err := provider.Lookup(backend); err != nil {
		return ackFailure(err)
	}
	cfg := c.store.Current()
	if !cfg.HasBackendSettings(backend) {
		return ackFailure(translate.NewError(translate.KindConfiguration,
			i18n.Tf("Backend %s has no settings", backend), nil))
	}
	cfg.ActiveBackend = backend
	if err := c.store.Update(cfg); err != nil {
		return ackFailure(translate.NewError(translate.KindConfiguration,
			i18n.Tf("Could not save the backend choice: %s", translate.Truncate(err.Error(), 300)), err))
	}

	msg := i18n.Tf("Switched to %s", backend)
	c.setState(StateReloading, nil)
	if err := c.activate(ctx, c.store.Current(), nil); err != nil {
		msg = fmt.Sprintf("%s (%s)", msg, translate.UserMessage(err))
	}
	return AckResponse{Success: true, Message: msg}
}
