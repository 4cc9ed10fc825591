package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/ncmat/config"
)

// cli holds global flags and the app built for the running command.
type cli struct {
	configPath string
	logLevel   string
	paths      []string

	app *app
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, c.app.Close(shutdownCtx))
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ncmat",
		Short:         "cached neutron scattering materials",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file path (yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error|off")
	root.PersistentFlags().StringSliceVar(&c.paths, "path", nil, "extra material search directory (repeatable)")

	root.AddCommand(
		c.formulaCmd(),
		c.materialCmd(),
		c.sampleCmd(),
		c.healthCmd(),
		c.serveCmd(),
	)
	return root
}

// loadConfig reads --config, if any, and applies flag overrides.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}

	switch c.logLevel {
	case "":
	case "off":
		cfg.Telemetry.Logging.Enabled = false
	default:
		cfg.Telemetry.Logging.Enabled = true
		cfg.Telemetry.Logging.Level = c.logLevel
	}
	cfg.Catalog.Paths = append(cfg.Catalog.Paths, c.paths...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the app for commands that need materials.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	c.app, err = newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	return err
}
