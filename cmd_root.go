package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	dataDir    string
	oasFile    string
	baseURL    string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:           "inventory",
	Short:         "Tech inventory catalog service",
	Long:          "A small inventory catalog: REST API over a flat JSON record store, plus maintenance and demo commands.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Logging.Level)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: $DATA_DIR or ./data)")
	rootCmd.PersistentFlags().StringVar(&oasFile, "oas", "", "OpenAPI document (default: $OAS_FILE or ./openapi.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Service URL for client commands (default: $BASE_URL or http://localhost:3000)")
}

// loadSettings resolves the configuration: defaults, config file,
// environment, then flags given on the command line.
func loadSettings(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("oas") {
		cfg.OASFile = oasFile
	}
	return cfg, nil
}

// serviceURL returns the base URL client commands talk to.
func serviceURL() string {
	if baseURL != "" {
		return baseURL
	}
	if env := os.Getenv("BASE_URL"); env != "" {
		return env
	}
	return defaultServerURL
}

func newClient() *APIClient {
	return NewAPIClient(serviceURL(), &http.Client{Timeout: 30 * time.Second})
}

// openStore prepares the data directory and returns a FileStore. When Redis
// is configured, writes also take the shared Redis lock; the returned close
// function releases the client.
func openStore(ctx context.Context, cfg *Config, opts ...StoreOption) (*FileStore, func(), error) {
	if err := EnsureFiles(cfg.DataDir, time.Now()); err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("could not connect to redis (%s): %w", cfg.Redis.Addr, err)
		}
		locker := multiLocker{newLocalLocker(), NewRedisLocker(client, cfg.Redis.LockKey, cfg.Redis.LockTTL, cfg.Redis.Wait)}
		opts = append(opts, WithLocker(locker))
		closeFn = func() { _ = client.Close() }
		slog.InfoContext(ctx, "Using redis write lock", "addr", cfg.Redis.Addr, "key", cfg.Redis.LockKey)
	}
	return NewFileStore(cfg.DataDir, opts...), closeFn, nil
}
