package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wsmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/wsmesh-go/internal/infra/confloader"
	"github.com/yndnr/wsmesh-go/internal/server/app"
	"github.com/yndnr/wsmesh-go/internal/server/config"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// ServeCommand runs the node until SIGINT or SIGTERM.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the node",
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	loader := newLoader(c)
	cfg, err := loadConfig(loader)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	log.Info("starting wsmesh-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Get().Commit,
		"config", loader.FilePath())
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	node, err := app.New(app.Options{Config: cfg, Logger: log})
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}

	if path := loader.FilePath(); path != "" {
		stop, err := watchConfig(loader, node, log)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			defer stop()
		}
	}
	return node.Wait(c.Context)
}

// watchConfig re-reads the configuration file on change and applies the
// settings that can change at runtime.
func watchConfig(loader *confloader.Loader, node *app.App, log logger.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(loader.FilePath()); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(path string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Warn("reloaded config rejected", "path", path, "error", err)
			return
		}
		if err := node.Apply(next); err != nil {
			log.Warn("reloaded config not applied", "path", path, "error", err)
		}
	})
	w.StartAsync()
	return w.Stop, nil
}
