package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jupiterbjy/gotigris/internal/config"
	"github.com/jupiterbjy/gotigris/internal/roster"
	"github.com/jupiterbjy/gotigris/internal/tigris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logger     *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gotigris",
		Short: "Unofficial Tigris HR portal client",
		Long:  "Log in to the Tigris HR portal and retrieve the leave/absence calendar",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config to get log file path
			cfg, err := config.Load(configPath)
			if err == nil && cfg.Daemon.LogFile != "" {
				logger, err = initFileLogger(cfg.Daemon.LogFile, cfg.Daemon.LogLevel)
				if err != nil {
					initLogger() // Fallback to console
				}
			} else {
				initLogger() // Default console logger
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newClient builds a logged-out portal client from the config.
func newClient(cfg *config.Config) (*tigris.Client, *time.Location, error) {
	loc, err := cfg.Portal.GetLocation()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load portal timezone: %w", err)
	}

	client, err := tigris.NewClient(
		cfg.Portal.LoginURL,
		cfg.Portal.APIURL,
		cfg.Credentials.Email,
		cfg.Credentials.Password,
		loc,
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create portal client: %w", err)
	}

	return client, loc, nil
}

// defaultQuery builds the calendar query template from the config.
func defaultQuery(cfg *config.Config) tigris.CalendarQuery {
	return tigris.CalendarQuery{
		OrgCode:       cfg.Search.OrgCode,
		OrgSearchType: cfg.Search.OrgSearchType,
		PosCode:       cfg.Search.PosCode,
		ResCode:       cfg.Search.ResCode,
		TeammateOnly:  cfg.Search.TeammateOnly,
	}
}

// newSource wires the event source chain: live portal fetch with login per
// fetch, a TTL cache in front, and the snapshot file as offline fallback.
func newSource(cfg *config.Config, client *tigris.Client, loc *time.Location) (roster.Source, *roster.SnapshotStore) {
	live := roster.NewClientSource(client, defaultQuery(cfg), true)

	var source roster.Source = roster.NewCachedSource(live, cfg.Snapshot.GetCacheTTL(), logger)

	var store *roster.SnapshotStore
	if cfg.Snapshot.File != "" {
		store = roster.NewSnapshotStore(cfg.Snapshot.File, loc, logger)
		source = roster.NewCompositeSource(source, store, logger)
	}

	return source, store
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ExpandEnvVars()
	return cfg, nil
}

func initLogger() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
}

func initFileLogger(logFile string, level string) (*zap.Logger, error) {
	// Setup lumberjack for log rotation
	logWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100,  // MB
		MaxBackups: 3,    // Keep max 3 old log files
		MaxAge:     28,   // days
		Compress:   true, // Compress old logs with gzip
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(logWriter),
		zapLevel,
	)

	return zap.New(core), nil
}
