package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is read from the environment once at process start and handed to
// each adapter constructor. Stage logic never reads ambient state.
type Config struct {
	Port         string
	StageTimeout time.Duration
	RunLogSize   int

	OpenAI OpenAIConfig
	Store  StoreConfig
	Media  MediaConfig
}

// OpenAIConfig covers the transcription, feedback, and synthesis adapters.
type OpenAIConfig struct {
	APIKey    string
	ChatModel string
	TTSVoice  string
	TTSSpeed  float64
}

// StoreConfig covers the temporary object store.
type StoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MediaConfig covers local audio extraction.
type MediaConfig struct {
	FFmpegBinary string
	TempDir      string
}

func Load() (Config, error) {
	cfg := Config{
		Port:         envOr("PORT", "8080"),
		StageTimeout: envDuration("STAGE_TIMEOUT", 5*time.Minute),
		RunLogSize:   envInt("RUN_LOG_SIZE", 100),
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			ChatModel: envOr("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			TTSVoice:  envOr("OPENAI_TTS_VOICE", "nova"),
			TTSSpeed:  envFloat("OPENAI_TTS_SPEED", 1.05),
		},
		Store: StoreConfig{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    os.Getenv("S3_REGION"),
			UseSSL:    envOr("S3_USE_SSL", "true") == "true",
		},
		Media: MediaConfig{
			FFmpegBinary: envOr("FFMPEG_BINARY", "ffmpeg"),
			TempDir:      envOr("MEDIA_TEMP_DIR", os.TempDir()),
		},
	}

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Store.Endpoint == "" {
		return Config{}, fmt.Errorf("S3_ENDPOINT not set")
	}
	if cfg.Store.Bucket == "" {
		return Config{}, fmt.Errorf("S3_BUCKET not set")
	}
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
