package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Minio    MinioConfig    `yaml:"minio"`
	Buckets  BucketConfig   `yaml:"buckets"`
	DocStore DocStoreConfig `yaml:"docstore"`
	IAM      IAMConfig      `yaml:"iam"`
	OCR      OCRConfig      `yaml:"ocr"`
	Notify   NotifyConfig   `yaml:"notify"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Auth     AuthConfig     `yaml:"auth"`
	Users    []User         `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MinioConfig struct {
	Endpoint            string `yaml:"endpoint"`
	AccessKey           string `yaml:"access_key"`
	SecretKey           string `yaml:"secret_key"`
	UseSSL              bool   `yaml:"use_ssl"`
	PresignExpireMinute int    `yaml:"presign_expire_minutes"`
}

// BucketConfig names the three object storage locations a check moves
// through: the drop zone, the audited originals, and the resized archive.
type BucketConfig struct {
	Incoming string `yaml:"incoming"`
	Audited  string `yaml:"audited"`
	Archived string `yaml:"archived"`
}

type DocStoreConfig struct {
	URL        string `yaml:"url"`
	AuditedDB  string `yaml:"audited_db"`
	ParsedDB   string `yaml:"parsed_db"`
	RejectedDB string `yaml:"rejected_db"`
}

type IAMConfig struct {
	TokenURL string `yaml:"token_url"`
	APIKey   string `yaml:"api_key"`
}

type OCRConfig struct {
	APIURL string `yaml:"api_url"`
}

type NotifyConfig struct {
	APIURL      string `yaml:"api_url"`
	APIKey      string `yaml:"api_key"`
	FromAddress string `yaml:"from_address"`
}

type LedgerConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

type PipelineConfig struct {
	MaxInFlight         int   `yaml:"max_in_flight"`
	RetryMaxAttempts    int   `yaml:"retry_max_attempts"`
	RetryBaseDelayMS    int   `yaml:"retry_base_delay_ms"`
	ScanIntervalSeconds int   `yaml:"scan_interval_seconds"`
	DerivativeWidths    []int `yaml:"derivative_widths"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// envOverrides maps environment variables onto the secret-bearing fields,
// so credentials never have to live in the YAML file.
func (c *Config) envOverrides() {
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("IAM_API_KEY"); v != "" {
		c.IAM.APIKey = v
	}
	if v := os.Getenv("NOTIFY_API_KEY"); v != "" {
		c.Notify.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Ledger.DatabaseURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
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

	cfg.envOverrides()

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Minio.PresignExpireMinute == 0 {
		cfg.Minio.PresignExpireMinute = 60
	}
	if cfg.Buckets.Incoming == "" {
		cfg.Buckets.Incoming = "checks-incoming"
	}
	if cfg.Buckets.Audited == "" {
		cfg.Buckets.Audited = "checks-audited"
	}
	if cfg.Buckets.Archived == "" {
		cfg.Buckets.Archived = "checks-archived"
	}
	if cfg.DocStore.AuditedDB == "" {
		cfg.DocStore.AuditedDB = "audited"
	}
	if cfg.DocStore.ParsedDB == "" {
		cfg.DocStore.ParsedDB = "parsed"
	}
	if cfg.DocStore.RejectedDB == "" {
		cfg.DocStore.RejectedDB = "rejected"
	}
	if cfg.Pipeline.MaxInFlight == 0 {
		cfg.Pipeline.MaxInFlight = 4
	}
	if cfg.Pipeline.RetryMaxAttempts == 0 {
		cfg.Pipeline.RetryMaxAttempts = 3
	}
	if cfg.Pipeline.RetryBaseDelayMS == 0 {
		cfg.Pipeline.RetryBaseDelayMS = 2000
	}
	if len(cfg.Pipeline.DerivativeWidths) == 0 {
		cfg.Pipeline.DerivativeWidths = []int{300, 150}
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every required field once, at entry, and names the
// missing one. Stages can then assume the configuration is complete.
func (c *Config) Validate() error {
	required := []struct {
		value  string
		reason string
	}{
		{c.Minio.Endpoint, "minio.endpoint is required"},
		{c.Minio.AccessKey, "minio.access_key is required (or MINIO_ACCESS_KEY)"},
		{c.Minio.SecretKey, "minio.secret_key is required (or MINIO_SECRET_KEY)"},
		{c.DocStore.URL, "docstore.url is required"},
		{c.IAM.TokenURL, "iam.token_url is required"},
		{c.IAM.APIKey, "iam.api_key is required (or IAM_API_KEY)"},
		{c.OCR.APIURL, "ocr.api_url is required"},
		{c.Notify.APIURL, "notify.api_url is required"},
		{c.Notify.APIKey, "notify.api_key is required (or NOTIFY_API_KEY)"},
		{c.Notify.FromAddress, "notify.from_address is required"},
		{c.Ledger.DatabaseURL, "ledger.database_url is required (or DATABASE_URL)"},
		{c.Auth.JWTSecret, "auth.jwt_secret is required (or JWT_SECRET)"},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("invalid config: %s", field.reason)
		}
	}

	for _, w := range c.Pipeline.DerivativeWidths {
		if w <= 0 {
			return fmt.Errorf("invalid config: pipeline.derivative_widths must be positive, got %d", w)
		}
	}

	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
