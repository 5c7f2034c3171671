package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/VCasecnikovs/duorec/internal/config"
)

const (
	defaultConfigPath = "configs/config.yaml"
	appName           = "duorec"
	appVersion        = "1.0.0"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "duorec",
	Short: "Dual-channel meeting recorder and transcriber",
	Long: `duorec records the local microphone and the system audio output as two
separate WAV channels, removes speaker bleed from the mic channel, and
turns both channels into a merged, speaker-attributed transcript.

Commands:
  record      - capture mic.wav and system.wav until interrupted
  transcribe  - transcribe a recorded session directory
  devices     - list available capture devices`,
	Version: appVersion,
}

// Execute runs the root command. Errors are already printed by cobra.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "Path to configuration file")
}

// loadConfig reads the configured file, falling back to built-in defaults
// when the default path does not exist.
func loadConfig() (*config.Config, error) {
	if cfgFile == defaultConfigPath {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogger creates the structured logger based on configuration.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
