package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/VCasecnikovs/duorec/internal/echo"
	"github.com/VCasecnikovs/duorec/internal/recorder"
	"github.com/VCasecnikovs/duorec/internal/segment"
	"github.com/VCasecnikovs/duorec/internal/transcription"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <session-dir>",
	Short: "Transcribe a recorded session directory",
	Long: `Transcribes a session directory containing mic.wav and system.wav.
The mic channel is echo-cleaned against the system channel before
recognition, both channels are transcribed, and the merged transcript
is saved as transcript.json and transcript.md in the session directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Logging)

	sessionDir := args[0]
	micPath := filepath.Join(sessionDir, recorder.MicFileName)
	sysPath := filepath.Join(sessionDir, recorder.SystemFileName)
	for _, p := range []string{micPath, sysPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("session directory must contain %s and %s: %w",
				recorder.MicFileName, recorder.SystemFileName, err)
		}
	}

	canceller, err := echo.NewCanceller(logger, cfg.Audio.SampleRate, cfg.Echo)
	if err != nil {
		return err
	}
	builder, err := segment.NewBuilder(cfg.Segmenter)
	if err != nil {
		return err
	}
	client, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Language:      cfg.Transcription.Language,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	}, nil)
	if err != nil {
		return err
	}

	pipeline := transcription.NewPipeline(logger, client, canceller, builder, nil)

	logger.Info("Transcribing session",
		slog.String("session_dir", sessionDir),
		slog.String("endpoint", cfg.Transcription.Endpoint),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := pipeline.TranscribeMeeting(ctx, micPath, sysPath)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	if err := saveTranscript(result, filepath.Join(sessionDir, "transcript")); err != nil {
		return err
	}

	fmt.Printf("Done: %d segments in %.1fs\n", result.NumSegments, result.ProcessingSeconds)
	return nil
}

// saveTranscript writes the result as JSON (full data) and markdown
// (readable) next to each other, sharing the base path.
func saveTranscript(result *segment.Result, basePath string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	jsonPath := basePath + ".json"
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}

	md := fmt.Sprintf("# Meeting Transcript\n\n- Model: %s\n- Segments: %d\n- Processing time: %.1fs\n\n---\n\n%s",
		result.Model, result.NumSegments, result.ProcessingSeconds, result.FullText)
	mdPath := basePath + ".md"
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", mdPath, err)
	}

	fmt.Printf("Saved: %s\n", jsonPath)
	fmt.Printf("Saved: %s\n", mdPath)
	return nil
}
