package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Adam5647/BaselineAnalysis/internal/analysis"
	"github.com/Adam5647/BaselineAnalysis/internal/cache"
	"github.com/Adam5647/BaselineAnalysis/internal/dataset"
	"github.com/Adam5647/BaselineAnalysis/internal/export"
	"github.com/Adam5647/BaselineAnalysis/internal/handler"
	appI18n "github.com/Adam5647/BaselineAnalysis/internal/i18n"
	"github.com/Adam5647/BaselineAnalysis/internal/insight"
	"github.com/Adam5647/BaselineAnalysis/internal/llm"
	"github.com/Adam5647/BaselineAnalysis/internal/llm/prompts"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
	"github.com/Adam5647/BaselineAnalysis/internal/store"
	"github.com/Adam5647/BaselineAnalysis/internal/survey"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "baseline",
		Short:        "Baseline survey analysis and insight service",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), reportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `baseline --data ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// dataFlags registers the flags every command needs to read the dataset.
func dataFlags(f *pflag.FlagSet) {
	f.String("data", "baseline.xlsx", "Survey responses file (.xlsx or .csv)")
	f.String("sheet", "", "Worksheet name (default: first sheet)")
	f.String("survey", "", "Survey definition YAML with answer keys (default: built-in)")
	f.StringSlice("district", nil, "Restrict to these districts (repeatable)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	dataFlags(f)
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "baseline.db", "SQLite database path for insight history")
	f.String("llm-provider", llm.ProviderGenerate, "Inference API (generate, openai)")
	f.String("llm-url", "http://localhost:11434/api/generate", "Inference endpoint URL")
	f.String("llm-key", "", "API key for the openai provider")
	f.String("llm-model", "mistral", "Model name")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for one generation request")
	f.String("prompts", "", "Directory with participant.txt/district.txt overriding the built-in prompts")
	f.Int("max-words", prompts.DefaultMaxWords, "Word limit for data blocks sent to the model")
	f.Int("top-n", prompts.DefaultTopResponses, "Default responses per question for top-response queries")
	f.String("redis-addr", "", "Redis address for the insight cache (empty disables caching)")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.Duration("cache-ttl", 24*time.Hour, "Insight cache TTL")
	f.StringP("lang", "l", "en", "Default message language (en, hi)")
	f.String("admin-password", "", "Password for admin routes (or set BASELINE_ADMIN_PASSWORD; empty disables them)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the (filtered) responses as CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	dataFlags(f)
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write summaries, answer key scores and top responses as JSON",
		RunE:  runReport,
	}
	f := cmd.Flags()
	dataFlags(f)
	f.Int("top-n", prompts.DefaultTopResponses, "Responses per open-ended question")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("BASELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("baseline")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/baseline")
	v.AddConfigPath("/etc/baseline")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup reads configuration and installs the logger.
func setup(cmd *cobra.Command) *viper.Viper {
	v := viperForCmd(cmd)
	setupLogging(v)
	return v
}

func loadSurvey(v *viper.Viper) (*survey.Definition, error) {
	def, err := survey.Load(v.GetString("survey"))
	if err != nil {
		return nil, fmt.Errorf("load survey definition: %w", err)
	}
	return def, nil
}

// cliFilter builds the record filter from --district. Unset selects all.
func cliFilter(v *viper.Viper) model.Filter {
	var f model.Filter
	if districts := v.GetStringSlice("district"); len(districts) > 0 {
		f.Districts = districts
	}
	return f
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	def, err := loadSurvey(v)
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	data := dataset.NewCache(
		dataset.FileLoader(v.GetString("data"), v.GetString("sheet")),
		func(_ context.Context, res *dataset.Result) {
			if _, err := db.RecordDatasetLoad(model.DatasetLoad{
				Path: res.Path, Hash: res.Hash, Rows: len(res.Records),
			}); err != nil {
				slog.Warn("record dataset load", "error", err)
			}
		},
	)
	// The dataset is required; fail fast instead of on the first request.
	if _, err := data.Records(ctx); err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen, err := llm.New(llm.Config{
		Provider: v.GetString("llm-provider"),
		URL:      v.GetString("llm-url"),
		APIKey:   v.GetString("llm-key"),
		Model:    v.GetString("llm-model"),
		Timeout:  v.GetDuration("llm-timeout"),
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if p, ok := gen.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("LLM health check failed; insights will report errors until it is reachable", "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", gen.Model())
		}
	}

	tmpl, err := prompts.LoadDir(v.GetString("prompts"))
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	var insightCache insight.Cache
	if addr := v.GetString("redis-addr"); addr != "" {
		rc, err := cache.New(ctx, cache.Options{
			Addr:     addr,
			Password: v.GetString("redis-password"),
			DB:       v.GetInt("redis-db"),
			TTL:      v.GetDuration("cache-ttl"),
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		insightCache = rc
		slog.Info("insight cache enabled", "redis", addr, "ttl", v.GetDuration("cache-ttl"))
	}

	svc := insight.New(gen, tmpl, prompts.NewBuilder(def, v.GetInt("max-words")), insightCache, db)

	cfg := model.ServerConfig{DefaultTopN: v.GetInt("top-n"), Lang: lang}
	if pw := v.GetString("admin-password"); pw != "" {
		hash, err := handler.HashPassword(pw)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		cfg.AdminHash = hash
	} else {
		slog.Warn("no admin password set, admin routes disabled")
	}

	h, err := handler.New(data, def, svc, db, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"data", v.GetString("data"),
		"provider", v.GetString("llm-provider"),
		"model", gen.Model(),
		"lang", lang,
		"answer_keys", len(def.AnswerKeys),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	res, err := dataset.Load(v.GetString("data"), v.GetString("sheet"))
	if err != nil {
		return err
	}
	records := analysis.Apply(res.Records, cliFilter(v))

	return withOutput(v.GetString("output"), func(w io.Writer) error {
		return export.WriteCSV(w, records)
	})
}

func runReport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)

	def, err := loadSurvey(v)
	if err != nil {
		return err
	}
	res, err := dataset.Load(v.GetString("data"), v.GetString("sheet"))
	if err != nil {
		return err
	}
	records := analysis.Apply(res.Records, cliFilter(v))
	report := export.BuildReport(res.Path, records, def, v.GetInt("top-n"))

	return withOutput(v.GetString("output"), func(w io.Writer) error {
		return export.WriteReport(w, report)
	})
}

// withOutput runs write against stdout or the named file.
func withOutput(outPath string, write func(io.Writer) error) error {
	if outPath == "" || outPath == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	slog.Info("wrote output", "path", outPath)
	return nil
}
