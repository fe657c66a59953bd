package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sessionstore"
	"github.com/aretw0/sessionstore/internal/config"
	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sessionstore",
	Short: "sessionstore keeps web sessions in Redis",
	Long: `sessionstore serves cookie based sessions backed by Redis and lets you
list, inspect and remove the stored sessions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis URL (overrides config)")
	rootCmd.PersistentFlags().String("namespace", "", "Key namespace (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if v, _ := cmd.Flags().GetString("redis-url"); v != "" {
		cfg.Redis.ConnectionURL = v
	}
	if v, _ := cmd.Flags().GetString("namespace"); v != "" {
		cfg.Namespace = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := logging.ParseLevel(cfg.LogLevel)
	return logging.New(level, logging.Format(cfg.LogFormat))
}

// openStore connects a Store configured from cfg.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...sessionstore.Option) (*sessionstore.Store, error) {
	opts := []sessionstore.Option{
		sessionstore.WithRedisConfig(cfg.Redis),
		sessionstore.WithNamespace(cfg.Namespace),
		sessionstore.WithExpireAfter(cfg.ExpireAfter),
		sessionstore.WithDropDefault(cfg.DropDefault),
		sessionstore.WithLockScope(cfg.Scope()),
		sessionstore.WithLogger(logger),
	}
	if cfg.DistributedLock {
		opts = append(opts, sessionstore.WithDistributedLock(cfg.LockTTL))
	}
	opts = append(opts, extra...)
	return sessionstore.New(ctx, "", opts...)
}
