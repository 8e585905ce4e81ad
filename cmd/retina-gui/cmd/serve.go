package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/offworldlabs/retina-gui/internal/apply"
	"github.com/offworldlabs/retina-gui/internal/audit"
	"github.com/offworldlabs/retina-gui/internal/config"
	"github.com/offworldlabs/retina-gui/internal/layered"
	"github.com/offworldlabs/retina-gui/internal/logging"
	"github.com/offworldlabs/retina-gui/internal/schema"
	"github.com/offworldlabs/retina-gui/internal/sshkeys"
	"github.com/offworldlabs/retina-gui/internal/sysinfo"
	"github.com/offworldlabs/retina-gui/internal/update"
	"github.com/offworldlabs/retina-gui/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console web server",
	Long: `Start the retina-gui web server.

The server renders the configuration editor against the merged config
the config-merger produced, writes user overrides back as a delta, and
exposes SSH key, apply, update and status endpoints.

Examples:
  # Start with defaults (0.0.0.0:80)
  retina-gui serve

  # Start on a custom port
  RETINA_SERVER_PORT=8080 retina-gui serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})

	store := layered.NewStore(cfg.MergedConfigPath, cfg.UserConfigPath)
	runner := apply.NewRunner(cfg.RetinaNodePath, cfg.Apply.MergeTimeout, cfg.Apply.RestartTimeout)
	keys := sshkeys.NewStore(cfg.AuthKeysPath())
	system := sysinfo.NewCollector()
	mender := update.NewClient(cfg.Mender.ServerURL, cfg.Mender.ReleaseName, cfg.Mender.DeviceType)

	// The audit trail is best-effort: a broken database should never keep
	// the console from serving.
	auditStore, err := audit.Open(cfg.AuditDBPath())
	if err != nil {
		logger.Warn("audit store unavailable", slog.String("error", err.Error()))
		auditStore = nil
	} else {
		defer func() {
			if closeErr := auditStore.Close(); closeErr != nil {
				logger.Warn("closing audit store", slog.String("error", closeErr.Error()))
			}
		}()
	}

	server, err := web.New(cfg, logger, web.Deps{
		Registry: schema.Default(),
		Store:    store,
		Runner:   runner,
		Keys:     keys,
		Audit:    auditStore,
		System:   system,
		Mender:   mender,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening",
			slog.String("addr", cfg.Addr()),
			slog.String("merged_config", cfg.MergedConfigPath),
			slog.String("user_config", cfg.UserConfigPath),
		)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := store.WatchMerged(ctx, func() {
			logger.Info("merged configuration changed on disk")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("merged config watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
