package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wsmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/wsmesh-go/internal/infra/confloader"
	"github.com/yndnr/wsmesh-go/internal/server/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "wsmesh-server",
		Usage:   "WebSocket notification node",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ServeCommand(),
			UserCommand(),
			GroupCommand(),
			VersionCommand(),
		},
		DefaultCommand: "serve",
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"WSMESH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Override storage.data_dir",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override log.level (debug, info, warn, error)",
		},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format: table, json, yaml",
		Value:   "table",
	}
}

// newLoader builds the config loader from the global flags. Command line
// overrides win over the file and the environment.
func newLoader(c *cli.Context) *confloader.Loader {
	overrides := make(map[string]any)
	if v := c.String("data-dir"); v != "" {
		overrides["storage.data_dir"] = v
	}
	if v := c.String("log-level"); v != "" {
		overrides["log.level"] = v
	}
	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads and verifies the configuration.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Flags: []cli.Flag{outputFlag()},
		Action: func(c *cli.Context) error {
			if c.String("output") == "table" {
				fmt.Fprintln(c.App.Writer, "wsmesh-server "+buildinfo.String())
				return nil
			}
			return printResult(c, buildinfo.Get())
		},
	}
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
