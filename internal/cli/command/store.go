package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wsmesh-go/internal/cli/output"
	"github.com/yndnr/wsmesh-go/internal/server/config"
	"github.com/yndnr/wsmesh-go/internal/storage"
	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// withStore opens the configured data directory for the duration of fn.
func withStore(c *cli.Context, fn func(*storage.Store) error) error {
	cfg, err := loadConfig(newLoader(c))
	if err != nil {
		return err
	}
	if cfg.Storage.InMemory {
		return errors.New("storage.in_memory is set; there is no data directory to manage")
	}
	engine, err := storage.Open(config.ToStorageConfig(cfg), logger.Nop())
	if err != nil {
		return fmt.Errorf("open data dir %s (is the server running?): %w", cfg.Storage.DataDir, err)
	}
	defer engine.Close()
	return fn(storage.NewStore(engine))
}

// idArg returns the single positional id. Flags must precede it: urfave/cli
// stops parsing flags at the first argument, so anything after the id would
// be ignored.
func idArg(c *cli.Context, what string) (string, error) {
	args := c.Args()
	if args.Len() == 0 || args.First() == "" {
		return "", fmt.Errorf("%s id is required", what)
	}
	if args.Len() > 1 {
		return "", fmt.Errorf("unexpected arguments after %s id %q: %s (put flags before the id)",
			what, args.First(), strings.Join(args.Tail(), " "))
	}
	return args.First(), nil
}

func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, data)
}
