package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// Backend
	BackendURL string `validate:"required,url"`
	RecipeID   int    `validate:"required,min=1"`

	// Voice output
	VoiceEnabled bool
	VoiceID      string `validate:"oneof=alloy echo fable onyx nova shimmer"`

	// Microphone / voice activity detection
	SampleRate            int           `validate:"min=8000"`
	VADEnabled            bool
	VADThreshold          int           `validate:"min=1,max=255"`
	VADRequiredHighFrames int           `validate:"min=1"`
	VADSilenceTimeout     time.Duration `validate:"min=100ms"`
	MinSpeechDuration     time.Duration `validate:"min=0"`
	MinArtifactBytes      int           `validate:"min=0"`

	// Camera / frame analysis
	CameraDevice     string
	CameraDeviceAlt  string
	AutoAnalysis     bool
	AnalysisInterval time.Duration `validate:"min=1s,max=10s"`

	// File paths
	ConfigDir    string
	LogFile      string
	AudioTempDir string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "livecoach")

	return &Config{
		BackendURL: envOr("LIVECOACH_BACKEND_URL", "http://localhost:8000"),
		RecipeID:   envInt("LIVECOACH_RECIPE_ID", 1),

		VoiceEnabled: envBool("LIVECOACH_VOICE", true),
		VoiceID:      envOr("LIVECOACH_VOICE_ID", "nova"),

		SampleRate:            envInt("LIVECOACH_SAMPLE_RATE", 16000),
		VADEnabled:            envBool("LIVECOACH_VAD", true),
		VADThreshold:          envInt("LIVECOACH_VAD_THRESHOLD", 35),
		VADRequiredHighFrames: envInt("LIVECOACH_VAD_HIGH_FRAMES", 5),
		VADSilenceTimeout:     envDuration("LIVECOACH_VAD_SILENCE_TIMEOUT", 1500*time.Millisecond),
		MinSpeechDuration:     envDuration("LIVECOACH_MIN_SPEECH_DURATION", 500*time.Millisecond),
		MinArtifactBytes:      envInt("LIVECOACH_MIN_ARTIFACT_BYTES", 2000),

		CameraDevice:     envOr("LIVECOACH_CAMERA_DEVICE", defaultCameraDevice()),
		CameraDeviceAlt:  os.Getenv("LIVECOACH_CAMERA_DEVICE_ALT"),
		AutoAnalysis:     envBool("LIVECOACH_AUTO_ANALYSIS", true),
		AnalysisInterval: envDuration("LIVECOACH_ANALYSIS_INTERVAL", 3*time.Second),

		ConfigDir:    configDir,
		LogFile:      filepath.Join(configDir, "livecoach.log"),
		AudioTempDir: filepath.Join(configDir, "audio_temp"),
	}
}

// Load reads .env if present, builds the configuration from the environment
// and validates it.
func Load() (*Config, error) {
	// A missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(cfg.AudioTempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio temp directory: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// defaultCameraDevice picks the platform's usual default capture device.
func defaultCameraDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return "0"
	default:
		return "/dev/video0"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
