package config

import (
	"gopkg.in/yaml.v3"
	"os"
)

type FilesConfig struct {
	RootDir string `yaml:"root_dir"`
}

type WhatsAppConfig struct {
	APIKey  string `yaml:"api_key"`
	Sender  string `yaml:"sender"`
	BaseURL string `yaml:"base_url"`
	DryRun  bool   `yaml:"dry_run"`
}

type StorageConfig struct {
	BaseURL    string `yaml:"base_url"`
	Bucket     string `yaml:"bucket"`
	SigningKey string `yaml:"signing_key"`
	DryRun     bool   `yaml:"dry_run"`
}

type ScannerConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	MaxAttempts int    `yaml:"max_attempts"`
	DryRun      bool   `yaml:"dry_run"`
}

type ScoringConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	DryRun  bool   `yaml:"dry_run"`
}

type MarginConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	StalenessHours int    `yaml:"staleness_hours"`
	DryRun         bool   `yaml:"dry_run"`
}

type GoogleConfig struct {
	ClientID string `yaml:"client_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebhookConfig struct {
	Secret  string   `yaml:"secret"`
	Targets []string `yaml:"targets"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Files    FilesConfig    `yaml:"files"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Storage  StorageConfig  `yaml:"storage"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Margin   MarginConfig   `yaml:"margin"`
	Google   GoogleConfig   `yaml:"google"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	if cfg.Files.RootDir == "" {
		cfg.Files.RootDir = "./files"
	}
	if cfg.Scanner.MaxAttempts <= 0 {
		cfg.Scanner.MaxAttempts = 3
	}
	if cfg.Margin.StalenessHours <= 0 {
		cfg.Margin.StalenessHours = 6
	}
	return &cfg
}
