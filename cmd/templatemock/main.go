package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"TemplateMock/internal/config"
	"TemplateMock/internal/templates"
	"TemplateMock/pkg/kit"
)

const service = "templatemock"

var (
	configPath string
	addrFlag   string
	seedFlag   uint64
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   service,
		Short: "Mock HTTP server for exercising template API clients",
		Long: `templatemock serves an in-memory set of document templates over a
small REST API, adding random latency and random 500s so clients can
exercise their timeout, retry and error handling paths.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the mock server",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("TEMPLATEMOCK_CONFIG"), "path to a YAML config file")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address, overrides config")
	serveCmd.Flags().Uint64Var(&seedFlag, "seed", 0, "fault injection seed, overrides config")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level, overrides config")

	rootCmd.AddCommand(serveCmd, smokeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Addr = addrFlag
	}
	if cmd.Flags().Changed("seed") {
		cfg.Faults.Seed = seedFlag
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	h := buildHandler(cfg, log)
	printBanner(cmd, cfg)

	if err := kit.RunHTTPServer(cmd.Context(), cfg.Addr, h, log); err != nil {
		log.Error("http server stopped", zap.Error(err))
		return err
	}
	return nil
}

func buildHandler(cfg config.Config, log *zap.Logger) http.Handler {
	faults := templates.NewFaultInjector(templates.FaultConfig{
		MinDelay:    cfg.Faults.MinDelay,
		MaxDelay:    cfg.Faults.MaxDelay,
		FailureRate: cfg.Faults.FailureRate,
		Seed:        cfg.Faults.Seed,
	})

	s := &templates.Server{
		Store:        templates.NewMemStore(templates.SeedTemplates()),
		Faults:       faults,
		Log:          log,
		InstanceID:   uuid.NewString(),
		MaxTestDelay: cfg.Faults.MaxTestDelay,
	}
	if cfg.RateLimit.PerMinute > 0 {
		s.RateLimiter = kit.NewIPRateLimiter(cfg.RateLimit.PerMinute, time.Minute)
	}

	log.Info("template store seeded",
		zap.String("instance_id", s.InstanceID),
		zap.Duration("min_delay", cfg.Faults.MinDelay),
		zap.Duration("max_delay", cfg.Faults.MaxDelay),
		zap.Float64("failure_rate", cfg.Faults.FailureRate),
		zap.Strings("cors_origins", cfg.CORS.AllowedOrigins),
	)

	return templates.NewHandler(s, templates.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
	})
}

func printBanner(cmd *cobra.Command, cfg config.Config) {
	base := "http://" + cfg.Addr
	if strings.HasPrefix(cfg.Addr, ":") {
		base = "http://localhost" + cfg.Addr
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "============================================================")
	fmt.Fprintln(out, templates.ServerName, templates.Version)
	fmt.Fprintln(out, "============================================================")
	fmt.Fprintf(out, "listening:  %s\n", base)
	fmt.Fprintf(out, "templates:  %s/api/templates\n", base)
	fmt.Fprintf(out, "health:     %s/health\n", base)
	fmt.Fprintln(out, "endpoints:")
	fmt.Fprintln(out, "  GET    /api/templates            list templates")
	fmt.Fprintln(out, "  GET    /api/templates/{id}       template detail")
	fmt.Fprintln(out, "  POST   /api/templates/search     search templates")
	fmt.Fprintln(out, "  POST   /api/templates/upload     upload a template")
	fmt.Fprintln(out, "  DELETE /api/templates/{id}       delete a template")
	fmt.Fprintln(out, "  GET    /api/test/success         canned success")
	fmt.Fprintln(out, "  GET    /api/test/error/{code}    canned failure")
	fmt.Fprintln(out, "  GET    /api/test/delay/{seconds} delayed response")
	fmt.Fprintln(out, "============================================================")
}
