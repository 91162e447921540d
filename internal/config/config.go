package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-phish-features/pkg/features"
	"github.com/shouni/go-phish-features/pkg/httpclient"
	"github.com/shouni/go-phish-features/pkg/retry"
)

// EnvConfigPath は設定ファイルのパスを指定する環境変数です。
const EnvConfigPath = "PHISHSCAN_CONFIG"

// DefaultConfigFile はカレントディレクトリで探す設定ファイル名です。
const DefaultConfigFile = "config.yaml"

type Config struct {
	HTTP     HTTPConfig        `yaml:"http"`
	Lookup   LookupConfig      `yaml:"lookup"`
	Features FeaturesConfig    `yaml:"features"`
	Log      LogConfig         `yaml:"log"`
	Models   map[string]string `yaml:"models" validate:"dive,keys,required,endkeys,required"`
	Store    StoreConfig       `yaml:"store"`
	Server   ServerConfig      `yaml:"server"`
	Scraper  ScraperConfig     `yaml:"scraper"`
}

type HTTPConfig struct {
	TimeoutSec       int    `yaml:"timeout_sec" validate:"min=1,max=300"`
	MaxRetries       int    `yaml:"max_retries" validate:"min=0,max=10"`
	UserAgent        string `yaml:"user_agent" validate:"required"`
	HeadProbe        bool   `yaml:"head_probe"`
	BackoffInitialMS int    `yaml:"backoff_initial_ms" validate:"min=0"`
	BackoffMaxMS     int    `yaml:"backoff_max_ms" validate:"min=0,gtefield=BackoffInitialMS"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes" validate:"min=1"`
}

type LookupConfig struct {
	WhoisTimeoutSec int  `yaml:"whois_timeout_sec" validate:"min=1,max=60"`
	TLSTimeoutSec   int  `yaml:"tls_timeout_sec" validate:"min=1,max=60"`
	TLSPort         int  `yaml:"tls_port" validate:"min=1,max=65535"`
	IndependentTLS  bool `yaml:"independent_tls"`
}

type FeaturesConfig struct {
	Shorteners []string `yaml:"shorteners" validate:"dive,required"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format     string `yaml:"format" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // 空なら履歴を保存しない
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type ScraperConfig struct {
	Concurrency int `yaml:"concurrency" validate:"min=1,max=100"`
	RateLimitMS int `yaml:"rate_limit_ms" validate:"min=0"`
}

// Default はすべての項目に既定値を設定した Config を返します。
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			TimeoutSec:       int(httpclient.DefaultHTTPTimeout / time.Second),
			MaxRetries:       retry.DefaultMaxRetries,
			UserAgent:        httpclient.UserAgent,
			HeadProbe:        true,
			BackoffInitialMS: int(retry.InitialBackoffInterval / time.Millisecond),
			BackoffMaxMS:     int(retry.MaxBackoffInterval / time.Millisecond),
			MaxBodyBytes:     httpclient.MaxBodySize,
		},
		Lookup: LookupConfig{
			WhoisTimeoutSec: 5,
			TLSTimeoutSec:   5,
			TLSPort:         443,
		},
		Features: FeaturesConfig{
			Shorteners: append([]string(nil), features.DefaultShorteners...),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Models: map[string]string{},
		Server: ServerConfig{Addr: ":8080"},
		Scraper: ScraperConfig{
			Concurrency: 6,
			RateLimitMS: 1000,
		},
	}
}

// Load は path の YAML を既定値の上に読み込み、検証します。
// path が空で、環境変数やカレントディレクトリにも設定ファイルがない場合は既定値を返します。
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", resolved, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗しました (%s): %w", resolved, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath は設定ファイルのパスを決定します。
// 優先順位: 引数 → 環境変数 PHISHSCAN_CONFIG → カレントディレクトリの config.yaml。
// 明示されたパスが存在しない場合はエラー、既定の場所にない場合は空文字を返します。
func ResolvePath(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv(EnvConfigPath)} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("設定ファイルが見つかりません (%s): %w", p, err)
		}
		return p, nil
	}

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("設定ファイルを確認できません (%s): %w", DefaultConfigFile, err)
	}
	return "", nil
}

// Validate は struct タグに従って設定値を検証します。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("設定値が不正です: %w", err)
	}
	return nil
}

// RetryConfig は試行間の待機設定を返します。
func (c HTTPConfig) RetryConfig() retry.Config {
	return retry.Config{
		InitialInterval: time.Duration(c.BackoffInitialMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.BackoffMaxMS) * time.Millisecond,
	}
}

func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c LookupConfig) WhoisTimeout() time.Duration {
	return time.Duration(c.WhoisTimeoutSec) * time.Second
}

func (c LookupConfig) TLSTimeout() time.Duration {
	return time.Duration(c.TLSTimeoutSec) * time.Second
}

func (c ScraperConfig) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMS) * time.Millisecond
}
