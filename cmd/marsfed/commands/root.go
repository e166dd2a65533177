package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pevans/marsfed/aggregator"
	"github.com/pevans/marsfed/config"
	"github.com/pevans/marsfed/facts"
	"github.com/pevans/marsfed/fetch"
	"github.com/pevans/marsfed/internal/logging"
	"github.com/pevans/marsfed/internal/telemetry"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "marsfed",
	Short:        "marsfed scrapes Mars news, imagery, weather and facts into one page.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.marsfed/config.yaml)")
}

// ExecuteContext runs the command named on the command line and exits non-zero
// on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds what every command builds from the loaded config.
type env struct {
	cfg       *config.Config
	logger    *logrus.Logger
	telemetry *telemetry.Telemetry
}

func loadEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.Setup(ctx, "marsfed", cfg.Telemetry, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:       cfg,
		logger:    logging.New(cfg.Log.Level, cfg.Log.Format),
		telemetry: tel,
	}, nil
}

// close flushes pending spans.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.telemetry.Shutdown(ctx); err != nil {
		e.log("telemetry").WithError(err).Warn("failed to flush spans")
	}
}

func (e *env) log(component string) *logrus.Entry {
	return e.logger.WithField("component", component)
}

// launcher picks the navigator driver named in the config.
func launcher(cfg *config.Config, client *resty.Client) navigator.Launcher {
	if cfg.Browser.Driver == config.DriverHTTP {
		return navigator.HTTPLauncher(client)
	}
	return navigator.ChromeLauncher(navigator.ChromeOptions{
		Headless:  cfg.Browser.Headless == nil || *cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		NoSandbox: cfg.Browser.NoSandbox,
	})
}

func (e *env) aggregator(sources scraper.Sources) *aggregator.Aggregator {
	client := fetch.NewClient(fetch.ClientOptions{
		Timeout:          e.cfg.FetchTimeout(),
		CloudflareBypass: e.cfg.Browser.CloudflareBypass == nil || *e.cfg.Browser.CloudflareBypass,
	})
	telemetry.InstrumentResty(client, e.telemetry.TracerProvider())

	return aggregator.New(
		launcher(e.cfg, client),
		facts.NewFetcher(client, sources.FactsURL, e.log("facts")),
		aggregator.WithSources(sources),
		aggregator.WithWaitTimeout(e.cfg.WaitTimeout()),
		aggregator.WithLogger(logrus.NewEntry(e.logger)),
		aggregator.WithTracerProvider(e.telemetry.TracerProvider()),
	)
}
