package configs

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// DetectionPolicy selects which snapshot field drives the
// "changed while live" notification.
type DetectionPolicy string

const (
	DetectByCategory DetectionPolicy = "category"
	DetectByTitle    DetectionPolicy = "title"
)

func (p DetectionPolicy) IsValid() bool {
	return p == DetectByCategory || p == DetectByTitle
}

// RPC info.
type RPC struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Bind   string `yaml:"bind" json:"bind"`
}

var defaultRPC = RPC{
	Enable: true,
	Bind:   ":8080",
}

func (r *RPC) verify() error {
	if r == nil || !r.Enable {
		return nil
	}
	if _, err := net.ResolveTCPAddr("tcp", r.Bind); err != nil {
		return fmt.Errorf("invalid rpc bind address: %w", err)
	}
	return nil
}

type Log struct {
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	SaveLastLog  bool   `yaml:"save_last_log" json:"save_last_log"`
}

type Telegram struct {
	Enable           bool   `yaml:"enable" json:"enable"`
	WithNotification bool   `yaml:"withNotification" json:"withNotification"`
	BotToken         string `yaml:"botToken" json:"botToken"`
	ChatID           string `yaml:"chatID" json:"chatID"`
}

type Email struct {
	Enable         bool   `yaml:"enable" json:"enable"`
	SMTPHost       string `yaml:"smtpHost" json:"smtpHost"`
	SMTPPort       int    `yaml:"smtpPort" json:"smtpPort"`
	SenderEmail    string `yaml:"senderEmail" json:"senderEmail"`
	SenderPassword string `yaml:"senderPassword" json:"senderPassword"`
	RecipientEmail string `yaml:"recipientEmail" json:"recipientEmail"`
}

type Notify struct {
	Telegram Telegram `yaml:"telegram" json:"telegram"`
	Email    Email    `yaml:"email" json:"email"`
	// OnOffline controls whether the end-of-stream transition is
	// delivered; the transition itself is always detected.
	OnOffline bool `yaml:"on_offline" json:"on_offline"`
}

type Sentry struct {
	DSN         string `yaml:"dsn" json:"dsn"`
	Environment string `yaml:"environment" json:"environment"`
}

type Config struct {
	File  string `yaml:"-" json:"-"`
	Debug bool   `yaml:"debug" json:"debug"`

	// Interval is the poll tick period in seconds.
	Interval int `yaml:"interval" json:"interval"`
	// InitialDelay postpones the first tick after startup (seconds).
	InitialDelay int `yaml:"initial_delay" json:"initial_delay"`
	// Concurrency bounds parallel checks within one tick.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// CheckTimeout bounds a single adapter call (seconds).
	CheckTimeout int `yaml:"check_timeout" json:"check_timeout"`

	DetectionPolicy DetectionPolicy `yaml:"detection_policy" json:"detection_policy"`

	DatabasePath string `yaml:"database_path" json:"database_path"`

	// PlatformMinIntervals caps per-platform request frequency
	// (platform name -> minimum seconds between requests).
	PlatformMinIntervals map[string]int `yaml:"platform_min_intervals,omitempty" json:"platform_min_intervals,omitempty"`

	RPC    RPC    `yaml:"rpc" json:"rpc"`
	Log    Log    `yaml:"log" json:"log"`
	Notify Notify `yaml:"notify" json:"notify"`
	Sentry Sentry `yaml:"sentry" json:"sentry"`
}

func NewConfig() *Config {
	return &Config{
		Interval:        3600,
		InitialDelay:    10,
		Concurrency:     5,
		CheckTimeout:    10,
		DetectionPolicy: DetectByCategory,
		DatabasePath:    "data/streamalert.db",
		RPC:             defaultRPC,
		Log:             Log{OutPutFolder: "./", SaveLastLog: false},
		Notify:          Notify{OnOffline: true},
	}
}

func NewConfigWithBytes(b []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, err
	}
	return config, nil
}

func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = file
	return config, nil
}

func (c *Config) Verify() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.RPC.verify(); err != nil {
		return err
	}
	if c.Interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be greater than 0")
	}
	if c.CheckTimeout <= 0 {
		return errors.New("check_timeout must be greater than 0")
	}
	if !c.DetectionPolicy.IsValid() {
		return fmt.Errorf("unknown detection_policy %q", c.DetectionPolicy)
	}
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	return nil
}

var currentConfig atomic.Pointer[Config]

// SetCurrentConfig publishes the active configuration process-wide.
func SetCurrentConfig(c *Config) {
	currentConfig.Store(c)
}

// GetCurrentConfig returns the active configuration, possibly nil
// before startup finishes.
func GetCurrentConfig() *Config {
	return currentConfig.Load()
}

func IsDebug() bool {
	c := GetCurrentConfig()
	return c != nil && c.Debug
}
