package command

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/simvault-go/internal/config"
	"github.com/yndnr/simvault-go/internal/infra/buildinfo"
	"github.com/yndnr/simvault-go/internal/infra/confloader"
	"github.com/yndnr/simvault-go/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "simvault-cli",
		Usage:   "SimVault data directory maintenance tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			StatusCommand(),
			VerifyCommand(),
			WALCommand(),
			BackupCommand(),
			ServeCommand(),
		},
		Before: setup,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"SIMVAULT_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory (overrides configuration)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// setup loads configuration and builds the logger, storing both in the app
// metadata for subcommands.
func setup(c *cli.Context) error {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(c.String("config")))
	if err := loader.Load(cfg); err != nil {
		return err
	}

	overrides := map[string]any{}
	if dir := c.String("data-dir"); dir != "" {
		overrides["storage.data_dir"] = dir
	}
	if c.Bool("verbose") {
		overrides["log.level"] = "debug"
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return err
		}
	}

	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})

	c.App.Metadata["config"] = cfg
	c.App.Metadata["logger"] = log
	return nil
}

// Conf retrieves the loaded configuration.
func Conf(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata["config"].(*config.Config)
	return cfg
}

// Logger retrieves the configured logger.
func Logger(c *cli.Context) *slog.Logger {
	if log, ok := c.App.Metadata["logger"].(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}
