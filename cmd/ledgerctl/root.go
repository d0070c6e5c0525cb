package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/walkmapper/walkmapper_core/internal/app"
	"github.com/walkmapper/walkmapper_core/internal/config"
	"github.com/walkmapper/walkmapper_core/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verbose: verbose}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output stays clean
func (c *commandContext) logger() *zap.Logger {
	level := "warn"
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Options{Level: level, Format: "console", Output: os.Stderr})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (c *commandContext) withRuntime(ctx context.Context, fn func(*app.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := app.Build(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool

	ctx := newCommandContext(&configFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Inspect and maintain the walkmapper segment ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", os.Getenv("WALKMAPPER_CONFIG"), "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log sink activity to stderr")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newRebuildExportCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))

	return rootCmd
}
