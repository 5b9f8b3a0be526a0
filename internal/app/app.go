// Package app wires the audio, camera, coaching and backend components
// into a Bubble Tea program. Every state transition happens inside the
// update loop; commands only perform I/O and report back with typed
// messages, so no two transitions can interleave.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/pantrychef/livecoach/internal/api"
	"github.com/pantrychef/livecoach/internal/audio"
	"github.com/pantrychef/livecoach/internal/camera"
	"github.com/pantrychef/livecoach/internal/coach"
	"github.com/pantrychef/livecoach/internal/config"
	"github.com/pantrychef/livecoach/internal/logging"
	"github.com/pantrychef/livecoach/internal/player"
	"github.com/pantrychef/livecoach/internal/vad"
)

// App owns the long-lived components and their teardown.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *api.Client
	monitor  *audio.Monitor
	recorder *audio.Recorder
	player   *player.Player
	detector *vad.Detector

	// Built during Run once the recipe is loaded.
	session   *coach.Session
	scheduler *coach.Scheduler
	source    *camera.FFmpegSource

	micStartErr error
}

// NewApp loads the configuration and constructs the offline components.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogFile)

	if err := audio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		client:   api.NewClient(cfg.BackendURL, cfg.VoiceID, logger),
		monitor:  audio.NewMonitor(logger),
		recorder: audio.NewRecorder(cfg.SampleRate, logger),
		player:   player.New(cfg.AudioTempDir, logger),
		detector: vad.New(vad.Config{
			Threshold:          cfg.VADThreshold,
			RequiredHighFrames: cfg.VADRequiredHighFrames,
			SilenceTimeout:     cfg.VADSilenceTimeout,
			MinSpeechDuration:  cfg.MinSpeechDuration,
		}),
	}, nil
}

// Run checks the backend, loads the recipe and runs the TUI until the
// user quits.
func (a *App) Run() error {
	ctx := context.Background()

	if err := a.client.Health(ctx); err != nil {
		return fmt.Errorf("backend is not reachable: %w", err)
	}

	recipe, err := a.client.Recipe(ctx, a.cfg.RecipeID)
	if err != nil {
		return fmt.Errorf("failed to load recipe %d: %w", a.cfg.RecipeID, err)
	}
	if len(recipe.Steps) == 0 {
		return fmt.Errorf("recipe %q has no instructions", recipe.Name)
	}

	a.session = coach.NewSession(recipe, a.player, a.logger)
	a.scheduler = coach.NewScheduler(nil, a.client, a.cfg.AnalysisInterval, a.logger)

	if a.cfg.VADEnabled {
		if err := a.monitor.Start(a.cfg.SampleRate); err != nil {
			// Voice detection degrades; push-to-talk still works.
			a.logger.Error("failed to start level monitor", zap.Error(err))
			a.micStartErr = err
		}
	}

	a.logger.Info("session started",
		zap.String("recipe", recipe.Name),
		zap.Int("steps", len(recipe.Steps)))

	program := tea.NewProgram(NewModel(a), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run program: %w", err)
	}
	return nil
}

// Cleanup tears the pipeline down in dependency order: pending capture is
// discarded first, then playback, then the shared audio runtime.
func (a *App) Cleanup() error {
	a.recorder.Discard()
	a.player.Stop()
	a.monitor.Stop()

	if err := audio.Terminate(); err != nil {
		a.logger.Warn("failed to terminate audio runtime", zap.Error(err))
	}
	if err := a.cleanupTempFiles(); err != nil {
		a.logger.Warn("failed to clean up temp audio files", zap.Error(err))
	}

	a.logger.Sync()
	return nil
}

// cleanupTempFiles removes stale synthesized-speech payloads.
func (a *App) cleanupTempFiles() error {
	return filepath.Walk(a.cfg.AudioTempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && time.Since(info.ModTime()) > time.Hour {
			return os.Remove(path)
		}
		return nil
	})
}
