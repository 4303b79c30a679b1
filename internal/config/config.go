// Package config loads the settings for both binaries from a yaml file with
// environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DeviceConfig configures the capture agent binary.
type DeviceConfig struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`

	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`
	ServerPath string `mapstructure:"server_path"`

	CaptureIntervalSeconds int `mapstructure:"capture_interval_seconds"`
	AttachPollSeconds      int `mapstructure:"attach_poll_seconds"`
	AttachMaxAttempts      int `mapstructure:"attach_max_attempts"` // 0 = retry forever
	UploadTimeoutSeconds   int `mapstructure:"upload_timeout_seconds"`

	Framesize int    `mapstructure:"framesize"`
	FramesDir string `mapstructure:"frames_dir"`
}

// ServerConfig configures the ingestion service binary.
type ServerConfig struct {
	Addr                     string `mapstructure:"addr"`
	DatabaseDSN              string `mapstructure:"database_dsn"`
	RedisAddr                string `mapstructure:"redis_addr"`
	ClassifierURL            string `mapstructure:"classifier_url"`
	ClassifierTimeoutSeconds int    `mapstructure:"classifier_timeout_seconds"`
	StagingDir               string `mapstructure:"staging_dir"`
	ShutdownTimeoutSeconds   int    `mapstructure:"shutdown_timeout_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Device DeviceConfig `mapstructure:"device"`
	Server ServerConfig `mapstructure:"server"`
}

// CaptureInterval returns the device tick period.
func (d DeviceConfig) CaptureInterval() time.Duration {
	return time.Duration(d.CaptureIntervalSeconds) * time.Second
}

// AttachPollInterval returns the attachment poll period.
func (d DeviceConfig) AttachPollInterval() time.Duration {
	return time.Duration(d.AttachPollSeconds) * time.Second
}

// UploadTimeout returns the per-upload I/O deadline.
func (d DeviceConfig) UploadTimeout() time.Duration {
	return time.Duration(d.UploadTimeoutSeconds) * time.Second
}

// ClassifierTimeout returns the classifier call deadline.
func (s ServerConfig) ClassifierTimeout() time.Duration {
	return time.Duration(s.ClassifierTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// LoadConfig reads the yaml file at path. Environment variables prefixed
// EMOVISION_ override file values (EMOVISION_DEVICE_PASSWORD and friends),
// which keeps credentials out of the file entirely.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EMOVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults mirror the reference device timings. The password default
	// registers the key with viper so EMOVISION_DEVICE_PASSWORD is honored
	// even when the file omits the line entirely.
	v.SetDefault("device.password", "")
	v.SetDefault("device.server_port", 8000)
	v.SetDefault("device.server_path", "/analyze")
	v.SetDefault("device.capture_interval_seconds", 5)
	v.SetDefault("device.attach_poll_seconds", 1)
	v.SetDefault("device.attach_max_attempts", 0)
	v.SetDefault("device.upload_timeout_seconds", 30)
	v.SetDefault("device.framesize", 4)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.redis_addr", "redis:6379")
	v.SetDefault("server.classifier_url", "http://localhost:5005")
	v.SetDefault("server.classifier_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Device.CaptureIntervalSeconds < 1 {
		cfg.Device.CaptureIntervalSeconds = 5
	}
	if cfg.Device.AttachPollSeconds < 1 {
		cfg.Device.AttachPollSeconds = 1
	}
	if cfg.Server.ClassifierTimeoutSeconds < 1 {
		cfg.Server.ClassifierTimeoutSeconds = 60
	}

	return &cfg, nil
}
