package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	csvw "github.com/geoknoesis/csvw-go"
	"github.com/geoknoesis/csvw-go/config"
	"github.com/geoknoesis/csvw-go/internal/logger"
	"github.com/geoknoesis/csvw-go/rdf2csv"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/store/postgres"
)

// errInvalid reports that validation found errors; the command exits 2.
var errInvalid = errors.New("validation failed")

func exitCode(err error) int {
	if errors.Is(err, errInvalid) {
		return 2
	}
	return 1
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath    string
	logLevel      string
	logFormat     string
	metricsAddr   string
	baseIRI       string
	pathOverrides []string
	storeDriver   string
	storeDSN      string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "Path to a YAML configuration file")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format (json, console)")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.StringVar(&f.baseIRI, "base-iri", "", "Base IRI for relative URLs and inferred tables")
	pf.StringArrayVar(&f.pathOverrides, "path-override", nil, "Rewrite URLs with prefix FROM to TO (FROM=TO, repeatable)")
	pf.StringVar(&f.storeDriver, "store", "", "Quad store for rdf2csv (memory, postgres)")
	pf.StringVar(&f.storeDSN, "store-dsn", "", "PostgreSQL connection string for the postgres store")
}

// loadConfig loads the configuration file, applies flags on top and validates
// the result.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides, err := parseOverrides(f.pathOverrides)
	if err != nil {
		return nil, err
	}
	cfg.Merge(&config.Config{
		Log:           logger.Config{Level: f.logLevel, Format: f.logFormat},
		Conversion:    config.ConversionConfig{BaseIRI: f.baseIRI},
		PathOverrides: overrides,
		Store: config.StoreConfig{
			Driver:   f.storeDriver,
			Postgres: postgres.Config{DSN: f.storeDSN},
		},
		Metrics: config.MetricsConfig{Addr: f.metricsAddr},
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseOverrides(flags []string) ([]resolve.PathOverride, error) {
	var out []resolve.PathOverride
	for _, raw := range flags {
		from, to, ok := strings.Cut(raw, "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("path override %q must have the form FROM=TO", raw)
		}
		out = append(out, resolve.PathOverride{From: from, To: to})
	}
	return out, nil
}

// app holds what a command needs to run conversions.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	metrics  *csvw.Metrics
	resolver *resolve.Fetcher
	server   *http.Server
}

func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := flags.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Log.Output = cmd.ErrOrStderr()
	a := &app{
		cfg:     cfg,
		log:     logger.New(&cfg.Log),
		metrics: csvw.NewMetrics(),
	}

	overrides, err := resolve.CompileOverrides(cfg.PathOverrides)
	if err != nil {
		return nil, err
	}
	opts := []resolve.Option{
		resolve.WithHTTPClient(&http.Client{
			Timeout:   cfg.HTTP.Timeout,
			Transport: userAgent{name: cfg.HTTP.UserAgent, next: http.DefaultTransport},
		}),
		resolve.WithOverrides(overrides),
		resolve.WithLogger(a.log),
	}
	if cfg.S3.Endpoint != "" {
		client, err := resolve.NewS3Client(cfg.S3)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resolve.WithS3(client))
	}
	a.resolver = resolve.NewFetcher(opts...)

	if cfg.Metrics.Addr != "" {
		a.serveMetrics()
	}
	return a, nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", a.cfg.Metrics.Addr).Msg("metrics server failed")
		}
	}()
	a.log.Info().Str("addr", a.cfg.Metrics.Addr).Msg("serving metrics")
}

func (a *app) close() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("metrics server shutdown")
	}
}

// options returns the conversion options configured for the app.
func (a *app) options() []csvw.Option {
	c := a.cfg.Conversion
	return []csvw.Option{
		csvw.OptLogger(a.log),
		csvw.OptMetrics(a.metrics),
		csvw.OptResolver(a.resolver),
		csvw.OptBaseIRI(c.BaseIRI),
		csvw.OptTemplateIRIs(c.TemplateIRIs),
		csvw.OptMinimal(c.Minimal),
		csvw.OptIncludeTableMetadata(c.TableMetadata),
		csvw.OptWindowSize(c.WindowSize),
		csvw.OptStepSize(c.StepSize),
		csvw.OptUseVocabMetadata(c.UseVocabMetadata),
		csvw.OptBuffer(c.Buffer),
		csvw.OptStore(a.storeFactory()),
	}
}

func (a *app) storeFactory() rdf2csv.StoreFactory {
	if a.cfg.Store.Driver != config.StorePostgres {
		return nil
	}
	cfg := a.cfg.Store.Postgres
	return func(ctx context.Context) (store.Store, error) {
		st, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

type userAgent struct {
	name string
	next http.RoundTripper
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if u.name != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.name)
	}
	return u.next.RoundTrip(req)
}

// output opens path for writing, or returns the command output for "" and
// "-".
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
