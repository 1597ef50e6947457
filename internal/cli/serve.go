package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/translatd/translatd/internal/api"
	"github.com/translatd/translatd/internal/bootstrap"
	"github.com/translatd/translatd/internal/config"
	"github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/preset"
	"github.com/translatd/translatd/internal/provider"
	"github.com/translatd/translatd/internal/stats"
	"github.com/translatd/translatd/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation relay in the foreground",
	RunE: func(c *cobra.Command, args []string) error {
		logging.SetupBaseLogger()

		res, err := bootstrap.Bootstrap(cfgFile)
		if err != nil {
			return err
		}
		cfg := res.Config
		if servePort != 0 {
			cfg.Port = servePort
		}
		if debug {
			cfg.Debug = true
		}
		logging.SetDebug(cfg.Debug)
		if cfg.LogFile != "" {
			if err := logging.ConfigureLogOutput(cfg.LogFile); err != nil {
				logging.WithError(err).Warnf("failed to configure log file %s", cfg.LogFile)
			}
		}
		if res.ConfigFilePath != "" {
			logging.Debugf("using config file %s", res.ConfigFilePath)
		}

		return runServer(c.Context(), cfg)
	},
}

// runServer assembles the store, preset tracker, stats recorder, provider
// registry and HTTP server, then blocks until the context or a signal stops
// it.
func runServer(parent context.Context, cfg *config.Config) error {
	if len(cfg.Providers) == 0 {
		logging.Warnf("no providers configured, translation requests will fail")
	}

	st, err := store.New(store.Config{DSN: cfg.StoreDSN})
	if err != nil {
		return err
	}
	if err := st.Start(); err != nil {
		return err
	}
	defer func() {
		if err := st.Stop(); err != nil {
			logging.WithError(err).Warnf("failed to stop store cleanly")
		}
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := preset.NewTracker(st, cfg.EffectivePresetLimit())
	if err := tracker.Load(ctx); err != nil {
		logging.WithError(err).Warnf("failed to load preset models, starting empty")
	}

	recorder := stats.NewRecorder(st)
	recorder.Bootstrap(ctx)

	registry := provider.NewRegistry(cfg.Providers, nil)
	for _, info := range registry.Vendors() {
		logging.Infof("provider %s ready with %d credential(s)", info.Name, info.Credentials)
	}

	srv := api.NewServer(cfg, registry, tracker, recorder)
	return srv.Run(ctx)
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
