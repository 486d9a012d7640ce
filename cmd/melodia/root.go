package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/melodia/config"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/logger"
	"gorm.io/gorm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration and initialises the logger once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if err := logger.Init(&cfg.Log); err != nil {
			c.configErr = fmt.Errorf("failed to initialise logger: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// openDatabase connects with the configured pool settings.
func (c *commandContext) openDatabase() (*gorm.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return database.Init(databaseConfig(cfg.Database))
}

func databaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		MaxIdleConns:    c.MaxIdleConns,
		MaxOpenConns:    c.MaxOpenConns,
		ConnMaxLifetime: time.Duration(c.ConnMaxLifetime) * time.Second,
		LogLevel:        c.LogLevel,
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "melodia",
		Short:         "Melodia music streaming API",
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

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newSeedCommand(ctx))
	rootCmd.AddCommand(newReportCommand(ctx))

	return rootCmd
}
