package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/VCasecnikovs/duorec/internal/capture"
	"github.com/VCasecnikovs/duorec/internal/metrics"
	"github.com/VCasecnikovs/duorec/internal/recorder"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record microphone and system audio until interrupted",
	Long: `Starts a recording session capturing the microphone and the system
audio output into a timestamped session directory. Both channels are
written as mono 16 kHz 16-bit WAV files (mic.wav and system.wav).
Recording runs until Ctrl+C.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Logging)

	logger.Info("Starting recording session",
		slog.String("app", appName),
		slog.String("version", appVersion),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("output_dir", cfg.Audio.OutputDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var appMetrics *metrics.Metrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		appMetrics = metrics.NewMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics, logger)
		metricsServer.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	mic := capture.NewMicrophone(logger, cfg.Capture.MicDevice)
	system, err := capture.NewSystemOutput(logger, cfg.Capture.SystemDevice)
	if err != nil {
		return fmt.Errorf("system audio capture unavailable: %w", err)
	}

	rec, err := recorder.NewRecorder(logger, appMetrics, cfg.Audio.SampleRate, mic, system)
	if err != nil {
		return err
	}

	sessionID := time.Now().Format("2006-01-02_15-04-05")
	sessionDir := filepath.Join(cfg.Audio.OutputDir, sessionID)

	recording, err := rec.Start(ctx, sessionDir)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	fmt.Printf("Recording session %s (Ctrl+C to stop)\n", sessionID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Stopping recording", slog.String("signal", sig.String()))

	info, err := recording.Stop()
	if err != nil {
		return fmt.Errorf("failed to stop recording: %w", err)
	}

	fmt.Printf("Recorded %.1fs\n", info.Duration)
	fmt.Printf("  %s\n", info.MicPath)
	fmt.Printf("  %s\n", info.SystemPath)
	return nil
}
