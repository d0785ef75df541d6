package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Shotstack ShotstackConfig `yaml:"shotstack" envconfig:"SHOTSTACK"`
	Overlay   OverlayConfig   `yaml:"overlay" envconfig:"OVERLAY"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	R2        StorageConfig   `yaml:"r2" envconfig:"R2"`

	RedisAddr        string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	SessionBackend   string `yaml:"session_backend" envconfig:"SESSION_BACKEND"` // sqlite or redis
	SessionDB        string `yaml:"session_db" envconfig:"SESSION_DB"`
	TelegramBotToken string `yaml:"telegram_bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`

	GeminiAPIKey    string `yaml:"gemini_api_key" envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `yaml:"anthropic_api_key" envconfig:"ANTHROPIC_API_KEY"`
}

type ShotstackConfig struct {
	APIKey       string `yaml:"api_key" envconfig:"API_KEY"`
	Stage        string `yaml:"stage" envconfig:"STAGE"`
	Host         string `yaml:"host" envconfig:"API_HOST"`
	IngestHost   string `yaml:"ingest_host" envconfig:"INGEST_HOST"`
	PollSeconds  int    `yaml:"poll_seconds" envconfig:"POLL_SECONDS"`
	PollTimeout  int    `yaml:"poll_timeout" envconfig:"POLL_TIMEOUT"`
	AssetTimeout int    `yaml:"asset_timeout" envconfig:"ASSET_TIMEOUT"`
}

type OverlayConfig struct {
	Container     string  `yaml:"container" envconfig:"CONTAINER"`
	Engine        string  `yaml:"engine" envconfig:"ENGINE"`
	SegmenterURL  string  `yaml:"segmenter_url" envconfig:"SEGMENTER_URL"`
	Threshold     float64 `yaml:"threshold" envconfig:"THRESHOLD"`
	Feather       int     `yaml:"feather" envconfig:"FEATHER"`
	CircleRadius  float64 `yaml:"circle_radius" envconfig:"CIRCLE_RADIUS"`
	CircleCenterX float64 `yaml:"circle_center_x" envconfig:"CIRCLE_CENTER_X"`
	CircleCenterY float64 `yaml:"circle_center_y" envconfig:"CIRCLE_CENTER_Y"`
	AutoCenter    bool    `yaml:"auto_center" envconfig:"AUTO_CENTER"`
	Concurrency   int     `yaml:"concurrency" envconfig:"CONCURRENCY"`
}

type PipelineConfig struct {
	Templates       []string `yaml:"templates" envconfig:"TEMPLATES"`
	FitTolerance    float64  `yaml:"fit_tolerance" envconfig:"FIT_TOLERANCE"`
	BackgroundColor string   `yaml:"background_color" envconfig:"BACKGROUND_COLOR"`
	BackgroundMode  string   `yaml:"background_video_length" envconfig:"BACKGROUND_VIDEO_LENGTH"`
	SubtitleTheme   string   `yaml:"subtitle_theme" envconfig:"SUBTITLE_THEME"`
	BlocksConfig    string   `yaml:"blocks_config" envconfig:"BLOCKS_CONFIG"`
	OutputRoot      string   `yaml:"output_root" envconfig:"OUTPUT_ROOT"`
}

type StorageConfig struct {
	AccountID       string `yaml:"account_id" envconfig:"ACCOUNT_ID"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	Bucket          string `yaml:"bucket" envconfig:"BUCKET_NAME"`
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT"`
	PresignTTL      int    `yaml:"presign_ttl_seconds" envconfig:"PRESIGN_TTL"`
}

// defaults matching the renderer and overlay tooling
func Default() *Config {
	return &Config{
		Shotstack: ShotstackConfig{
			Stage:        "stage",
			Host:         "https://api.shotstack.io",
			IngestHost:   "https://api.shotstack.io",
			PollSeconds:  5,
			PollTimeout:  300,
			AssetTimeout: 300,
		},
		Overlay: OverlayConfig{
			Container:     "mov",
			Engine:        "http",
			Threshold:     0.6,
			Feather:       7,
			CircleRadius:  0.35,
			CircleCenterX: 0.5,
			CircleCenterY: 0.5,
			AutoCenter:    true,
			Concurrency:   4,
		},
		Pipeline: PipelineConfig{
			Templates:       []string{"overlay", "circle", "basic", "mix_basic_overlay", "mix_basic_circle"},
			FitTolerance:    0.02,
			BackgroundColor: "#000000",
			BackgroundMode:  "auto",
			SubtitleTheme:   "boxed",
			OutputRoot:      "build",
		},
		R2: StorageConfig{
			Bucket:     "datanauts-ugc-bot",
			PresignTTL: 3600,
		},
		RedisAddr:      "localhost:6379",
		SessionBackend: "sqlite",
		SessionDB:      "headcut.db",
	}
}

// Load reads defaults, then the optional YAML file, then .env and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	return cfg, nil
}

// R2 endpoint, derived from the account id when not set
func (c StorageConfig) ResolvedEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.AccountID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// whether object storage credentials are present
func (c StorageConfig) Enabled() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.ResolvedEndpoint() != ""
}
