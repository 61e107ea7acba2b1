package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Minio     MinioConfig     `yaml:"minio"`
	PDFCo     PDFCoConfig     `yaml:"pdfco"`
	Extract   ExtractConfig   `yaml:"extract"`
	Store     StoreConfig     `yaml:"store"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Email     EmailConfig     `yaml:"email"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port        int   `yaml:"port"`
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
	Region     string `yaml:"region"`
	// Public hands out plain object URLs instead of presigned ones.
	Public bool `yaml:"public"`
}

// PDFCoConfig configures the document-to-text conversion service.
// An empty APIKey disables it and retrieval goes straight to direct fetch.
type PDFCoConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
}

type ExtractConfig struct {
	ConvertTimeout time.Duration `yaml:"convert_timeout"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
}

type StoreConfig struct {
	Driver          string `yaml:"driver"` // memory, sqlite
	Path            string `yaml:"path"`
	MaxApplications int    `yaml:"max_applications"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	SheetName       string `yaml:"sheet_name"`
}

type WebhookConfig struct {
	URL            string        `yaml:"url"`
	CandidateEmail string        `yaml:"candidate_email"`
	Timeout        time.Duration `yaml:"timeout"`
	// Production reports status "prod" instead of "testing" in payloads.
	Production bool `yaml:"production"`
}

type EmailConfig struct {
	From            string        `yaml:"from"`
	CredentialsFile string        `yaml:"credentials_file"`
	Subject         string        `yaml:"subject"`
	Delay           time.Duration `yaml:"delay"`
	BatchLimit      int           `yaml:"batch_limit"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	Burst           int           `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Path returns the config file location, CVINTAKE_CONFIG or config.yaml.
func Path() string {
	if p := os.Getenv("CVINTAKE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration holding only default values
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 5
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.PDFCo.APIURL == "" {
		c.PDFCo.APIURL = "https://api.pdf.co"
	}
	if c.Extract.ConvertTimeout == 0 {
		c.Extract.ConvertTimeout = 30 * time.Second
	}
	if c.Extract.FetchTimeout == 0 {
		c.Extract.FetchTimeout = 20 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/cvintake.db"
	}
	if c.Store.MaxApplications == 0 {
		c.Store.MaxApplications = 1000
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Applications"
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if c.Email.Subject == "" {
		c.Email.Subject = "Your Job Application - CV Under Review"
	}
	if c.Email.Delay == 0 {
		c.Email.Delay = 24 * time.Hour
	}
	if c.Email.BatchLimit == 0 {
		c.Email.BatchLimit = 50
	}
	if c.Email.RatePerSecond == 0 {
		c.Email.RatePerSecond = 2
	}
	if c.Email.Burst == 0 {
		c.Email.Burst = 5
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
}
