// glosa is a selection translator backend: it picks a translation backend,
// falls back between local models and answers a small message contract.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/glosa/cache"
	"github.com/minios-linux/glosa/config"
	"github.com/minios-linux/glosa/coordinator"
	"github.com/minios-linux/glosa/i18n"
	"github.com/minios-linux/glosa/langmeta"
	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/metrics"
	"github.com/minios-linux/glosa/server"
	"github.com/minios-linux/glosa/settings"
	"github.com/minios-linux/glosa/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	optionsFile string
	logLevel    string
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "glosa",
		Short: "Selection translator backend with local-model fallback",
		Long: `glosa: selection translator backend.

Routes translation requests to the active backend: a set of local Ollama
models with per-language-pair preferences and a fallback model, or a
built-in LibreTranslate-compatible service with language detection.

Commands:
  serve       Run the HTTP message endpoint
  translate   Translate text once and print the result
  status      Check the active backend or one model
  languages   Show the language catalog
  backend     Switch the active backend
  config      Show, locate or reset the configuration

Environment:
  GLOSA_*     Service options (GLOSA_LISTEN, GLOSA_REDIS_URL, ...)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&optionsFile, "options", "", "Service options file (default: ./glosa.yaml or the data directory)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newStatusCmd(),
		newLanguagesCmd(),
		newBackendCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Runtime wiring
// ---------------------------------------------------------------------------

// runtime is everything a command needs to talk to the coordinator.
type runtime struct {
	opts     *settings.Options
	coord    *coordinator.Coordinator
	cache    cache.Cache
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func (r *runtime) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	logging.Close()
}

// loadOptions reads service options and sets up logging and the UI
// language. One-shot commands log at warn unless --log-level says
// otherwise, so their output stays readable.
func loadOptions(oneShot bool) (*settings.Options, error) {
	opts, err := settings.LoadOptions(optionsFile)
	if err != nil {
		return nil, err
	}
	level := opts.LogLevel
	if oneShot {
		level = "warn"
	}
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.Setup(logging.Options{
		Level:     level,
		File:      opts.LogFile,
		MaxSizeMB: opts.LogMaxSizeMB,
		Console:   os.Stderr,
	}); err != nil {
		return nil, err
	}
	i18n.Init(opts.UILanguage)
	return opts, nil
}

// openRuntime builds and starts a coordinator. A partial start is reported
// as a warning; the coordinator still answers.
func openRuntime(ctx context.Context, oneShot bool) (*runtime, error) {
	opts, err := loadOptions(oneShot)
	if err != nil {
		return nil, err
	}

	r := &runtime{opts: opts, cache: cache.Nop{}, registry: prometheus.NewRegistry()}
	r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.metrics = metrics.New(r.registry)

	if opts.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, opts.RedisURL, opts.CacheTTL)
		if err != nil {
			logWarning("Translation cache disabled: %v", err)
		} else {
			r.cache = rc
		}
	}

	r.coord = coordinator.New(coordinator.Options{
		Store: config.NewStore(config.StoreOptions{
			BundledPath:  opts.BundledConfig,
			OverridePath: opts.OverridePath,
		}),
		Cache:            r.cache,
		Metrics:          r.metrics,
		TranslateTimeout: opts.TranslateTimeout,
		StatusTimeout:    opts.StatusTimeout,
	})
	if err := r.coord.Start(ctx); err != nil {
		logWarning("%s", translate.UserMessage(err))
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func newServeCmd() *cobra.Command {
	var (
		listen string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP message endpoint",
		Long: `Start the coordinator and serve the message contract over HTTP.

Routes:
  POST /api/message              {"action": "...", ...} envelopes
  GET  /api/config               Active configuration and language catalog
  PUT  /api/config               Replace the configuration
  POST /api/translate            Translate one selection
  GET  /api/status               Active backend status
  GET  /api/models/{id}/status   One model's status
  POST /api/backend/{name}       Switch the active backend
  GET  /healthz                  Coordinator state
  GET  /metrics                  Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer r.Close()

			if cmd.Flags().Changed("listen") {
				r.opts.Listen = listen
			}
			if cmd.Flags().Changed("watch") {
				r.opts.WatchOverride = watch
			}
			if r.opts.WatchOverride {
				if err := r.coord.WatchOverride(ctx); err != nil {
					logWarning("Not watching %s: %v", r.opts.OverridePath, err)
				}
			}

			state, _ := r.coord.State()
			logInfo("Coordinator %s, backend %s", state, r.coord.GetConfig(ctx).ActiveBackend)

			srv := server.New(r.coord, server.Options{
				Addr:      r.opts.Listen,
				RateLimit: r.opts.RateLimit,
				Burst:     r.opts.RateBurst,
				Metrics:   r.metrics,
				Gatherer:  r.registry,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides GLOSA_LISTEN)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload when the override file changes")
	return cmd
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		from    string
		to      string
		style   string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "translate TEXT...",
		Short: "Translate text once and print the result",
		Long: `Translate text with the active backend and print the translation.

Text is taken from the arguments, or from stdin when no arguments are given.

Examples:
  glosa translate --to ja "Good morning"
  echo "Buenos días" | glosa translate --from auto --to en`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(data)
			}

			r, err := openRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			cfg := r.coord.GetConfig(cmd.Context()).Config
			if to == "" {
				to = cfg.DefaultTargetLanguage
			}
			if from == "" {
				from = cfg.DefaultSourceLanguage
			}
			if style == "" {
				style = cfg.DefaultTranslationStyle
			}

			resp := r.coord.Translate(cmd.Context(), translate.Request{
				Text:       text,
				SourceLang: from,
				TargetLang: to,
				Style:      style,
			})
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			}
			if !resp.Success {
				return errors.New(resp.Error)
			}
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Translation)
			}
			if verbose {
				describeTranslation(resp)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source language code, or auto (default from configuration)")
	cmd.Flags().StringVar(&to, "to", "", "Target language code (default from configuration)")
	cmd.Flags().StringVar(&style, "style", "", "Translation style: natural or literal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response record as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report the model used and fallback")
	return cmd
}

func describeTranslation(resp coordinator.TranslateResponse) {
	if resp.UsedFallback {
		logWarning("Translated by fallback model %s", resp.ModelOrProviderUsed)
	} else {
		logInfo("Translated by %s", resp.ModelOrProviderUsed)
	}
	if resp.DetectedSourceLang != "" {
		logInfo("Detected source language: %s", langmeta.Name(resp.DetectedSourceLang))
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the active backend or one model",
		Long: `Check whether the active backend is reachable.

With --model, check one model of a multi-model backend instead. Exits
non-zero when the check fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			var st coordinator.StatusResponse
			if model != "" {
				st = r.coord.CheckModelStatus(cmd.Context(), model)
			} else {
				st = r.coord.CheckBackendStatus(cmd.Context())
			}
			printStatus(cmd.OutOrStdout(), r.coord.GetConfig(cmd.Context()).ActiveBackend, st)
			if translate.Status(st).OK() {
				return nil
			}
			return errors.New(st.Message)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Check this model instead of the backend")
	return cmd
}

func printStatus(w io.Writer, backend string, st coordinator.StatusResponse) {
	color := colorGreen
	if st.State != translate.StateRunning {
		color = colorRed
	}
	fmt.Fprintf(w, "%-10s %s%-8s%s %s\n", backend, color, st.State, colorReset, st.Message)
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Show the language catalog",
		Long:  `List supported and disabled languages from the active configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(true)
			if err != nil {
				return err
			}
			store := config.NewStore(config.StoreOptions{BundledPath: opts.BundledConfig, OverridePath: opts.OverridePath})
			cfg, err := store.Load()
			if err != nil {
				logWarning("%v", err)
			}
			printCatalog(cmd.OutOrStdout(), config.DeriveLanguageCatalog(cfg))
			return nil
		},
	}
}

func printCatalog(w io.Writer, langs []config.Language) {
	fmt.Fprintf(w, "%-8s %-24s %-20s %s\n", "Code", "Name", "Native", "Enabled")
	fmt.Fprintln(w, strings.Repeat("─", 62))
	enabled := 0
	for _, l := range langs {
		mark := colorRed + "no" + colorReset
		if l.Enabled {
			mark = colorGreen + "yes" + colorReset
			enabled++
		}
		fmt.Fprintf(w, "%-8s %-24s %-20s %s\n", l.Code, l.Name, langmeta.Resolve(l.Code).Native, mark)
	}
	fmt.Fprintln(w, strings.Repeat("─", 62))
	fmt.Fprintf(w, i18n.N("%d language enabled", "%d languages enabled", enabled)+"\n", enabled)
}

// ---------------------------------------------------------------------------
// backend
// ---------------------------------------------------------------------------

func newBackendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backend [NAME]",
		Short: "Show or switch the active backend",
		Long: `Without arguments, show the active and available backends.
With NAME, make it the active backend and persist the choice.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRuntime(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				cfg := r.coord.GetConfig(cmd.Context())
				for _, id := range cfg.Backends {
					marker := "  "
					if id == cfg.ActiveBackend {
						marker = "* "
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, id)
				}
				return nil
			}

			ack := r.coord.SwitchBackend(cmd.Context(), args[0])
			if !ack.Success {
				return errors.New(ack.Error)
			}
			logSuccess("%s", ack.Message)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, locate or reset the configuration",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(true)
			if err != nil {
				return err
			}
			store := config.NewStore(config.StoreOptions{BundledPath: opts.BundledConfig, OverridePath: opts.OverridePath})
			cfg, err := store.Load()
			if err != nil {
				logWarning("%v", err)
			}
			switch format {
			case "json":
				return printJSON(cmd.OutOrStdout(), cfg)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(cfg)
			default:
				return fmt.Errorf("unknown format %q (valid: json, yaml)", format)
			}
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "Output format: json or yaml")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the override file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), opts.OverridePath)
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Remove the saved override and use the bundled configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(true)
			if err != nil {
				return err
			}
			if err := settings.RemoveOverride(opts.OverridePath); err != nil {
				return err
			}
			logSuccess("Removed %s", opts.OverridePath)
			return nil
		},
	}

	validate := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a configuration document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadFile(args[0], config.Default())
			if err != nil {
				return err
			}
			if cfg == nil {
				return fmt.Errorf("%s: no such file", args[0])
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			logSuccess("%s is valid (active backend %s)", args[0], cfg.ActiveBackend)
			return nil
		},
	}

	cmd.AddCommand(show, path, reset, validate)
	return cmd
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glosa version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:    %s\n", commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
