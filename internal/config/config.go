package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Systemd SystemdConfig `mapstructure:"systemd" yaml:"systemd"`
	Weather WeatherConfig `mapstructure:"weather" yaml:"weather"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	KeyringBackend string `mapstructure:"keyring_backend" yaml:"keyring_backend"`
}

type MailConfig struct {
	Maildir         string `mapstructure:"maildir" yaml:"maildir"`
	SyncCommand     string `mapstructure:"sync_command" yaml:"sync_command"`
	SyncTimeout     int    `mapstructure:"sync_timeout" yaml:"sync_timeout"`
	RefreshInterval int    `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	Source          string `mapstructure:"source" yaml:"source"`
	Preview         bool   `mapstructure:"preview" yaml:"preview"`
}

type IMAPConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	TLS                bool   `mapstructure:"tls" yaml:"tls"`
	StartTLS           bool   `mapstructure:"starttls" yaml:"starttls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// ServerConfig holds settings shared by every HTTP server.
type ServerConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
}

type SystemdConfig struct {
	Host     string            `mapstructure:"host" yaml:"host"`
	Port     int               `mapstructure:"port" yaml:"port"`
	Timeout  int               `mapstructure:"timeout" yaml:"timeout"`
	Services map[string]string `mapstructure:"services" yaml:"services"`
}

type WeatherConfig struct {
	Host     string  `mapstructure:"host" yaml:"host"`
	Port     int     `mapstructure:"port" yaml:"port"`
	APIKey   string  `mapstructure:"api_key" yaml:"api_key"`
	Lat      float64 `mapstructure:"lat" yaml:"lat"`
	Lon      float64 `mapstructure:"lon" yaml:"lon"`
	Units    string  `mapstructure:"units" yaml:"units"`
	Endpoint string  `mapstructure:"endpoint" yaml:"endpoint"`
	DataDir  string  `mapstructure:"data_dir" yaml:"data_dir"`
	CacheTTL int     `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Days     int     `mapstructure:"days" yaml:"days"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

const (
	SourceMaildir = "maildir"
	SourceIMAP    = "imap"
)

func DefaultConfig() Config {
	return Config{
		Mail: MailConfig{
			Maildir:         "~/.mail",
			SyncCommand:     "mbsync -a",
			SyncTimeout:     120,
			RefreshInterval: 120,
			Host:            "127.0.0.1",
			Port:            8765,
			Source:          SourceMaildir,
		},
		IMAP: IMAPConfig{
			Port: 993,
			TLS:  true,
		},
		Systemd: SystemdConfig{
			Host:    "0.0.0.0",
			Port:    5055,
			Timeout: 8,
			Services: map[string]string{
				"windscribe": "openvpn-client@windscribe.service",
				"spotifyd":   "spotifyd.service",
			},
		},
		Weather: WeatherConfig{
			Host:     "0.0.0.0",
			Port:     5170,
			Lat:      35.7796,
			Lon:      -78.6382,
			Units:    "imperial",
			Endpoint: "https://api.openweathermap.org",
			DataDir:  "./weather_data",
			CacheTTL: 3600,
			Days:     5,
		},
		Log: LogConfig{
			Level: "info",
		},
		KeyringBackend: "auto",
	}
}

// legacyEnv maps config keys to the environment variables the standalone
// status scripts used before they were merged into one binary.
var legacyEnv = map[string]string{
	"mail.maildir":      "MAILDIR",
	"mail.sync_command": "MBSYNC_COMMAND",
	"mail.host":         "MAIL_STATUS_HOST",
	"mail.port":         "MAIL_STATUS_PORT",
	"server.token":      "STATUS_API_TOKEN",
	"systemd.port":      "STATUS_API_PORT",
	"weather.api_key":   "API_KEY",
}

func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path (or the default location when path is
// empty) and layers DASHSTAT_* environment variables on top. A missing file
// at the default location is not an error; a missing explicit path is.
// Environment variables set to the empty string override too, so
// MBSYNC_COMMAND= disables syncing.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	setDefaults(v, cfg)
	if err := bindLegacyEnv(v); err != nil {
		return cfg, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || explicit {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// The allow-list is replaced, not merged, when the file provides one.
	defaultServices := cfg.Systemd.Services
	cfg.Systemd.Services = nil
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Systemd.Services) == 0 {
		cfg.Systemd.Services = defaultServices
	}

	return cfg, nil
}

func Save(cfg Config, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		p, err := ConfigPath()
		if err != nil {
			return "", err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}

	return path, nil
}

func Redact(cfg Config) Config {
	masked := cfg
	if masked.Auth.Password != "" {
		masked.Auth.Password = "****"
	}
	if masked.Server.Token != "" {
		masked.Server.Token = "****"
	}
	if masked.Weather.APIKey != "" {
		masked.Weather.APIKey = "****"
	}
	return masked
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("mail.maildir", cfg.Mail.Maildir)
	v.SetDefault("mail.sync_command", cfg.Mail.SyncCommand)
	v.SetDefault("mail.sync_timeout", cfg.Mail.SyncTimeout)
	v.SetDefault("mail.refresh_interval", cfg.Mail.RefreshInterval)
	v.SetDefault("mail.host", cfg.Mail.Host)
	v.SetDefault("mail.port", cfg.Mail.Port)
	v.SetDefault("mail.source", cfg.Mail.Source)
	v.SetDefault("mail.preview", cfg.Mail.Preview)

	v.SetDefault("imap.host", cfg.IMAP.Host)
	v.SetDefault("imap.port", cfg.IMAP.Port)
	v.SetDefault("imap.tls", cfg.IMAP.TLS)
	v.SetDefault("imap.starttls", cfg.IMAP.StartTLS)
	v.SetDefault("imap.insecure_skip_verify", cfg.IMAP.InsecureSkipVerify)

	v.SetDefault("auth.username", cfg.Auth.Username)
	v.SetDefault("auth.password", cfg.Auth.Password)

	v.SetDefault("server.token", cfg.Server.Token)

	v.SetDefault("systemd.host", cfg.Systemd.Host)
	v.SetDefault("systemd.port", cfg.Systemd.Port)
	v.SetDefault("systemd.timeout", cfg.Systemd.Timeout)

	v.SetDefault("weather.host", cfg.Weather.Host)
	v.SetDefault("weather.port", cfg.Weather.Port)
	v.SetDefault("weather.api_key", cfg.Weather.APIKey)
	v.SetDefault("weather.lat", cfg.Weather.Lat)
	v.SetDefault("weather.lon", cfg.Weather.Lon)
	v.SetDefault("weather.units", cfg.Weather.Units)
	v.SetDefault("weather.endpoint", cfg.Weather.Endpoint)
	v.SetDefault("weather.data_dir", cfg.Weather.DataDir)
	v.SetDefault("weather.cache_ttl", cfg.Weather.CacheTTL)
	v.SetDefault("weather.days", cfg.Weather.Days)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("keyring_backend", cfg.KeyringBackend)
}

func bindLegacyEnv(v *viper.Viper) error {
	replacer := strings.NewReplacer(".", "_")
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func ValidateMail(cfg Config) error {
	switch cfg.Mail.Source {
	case SourceMaildir:
		if strings.TrimSpace(cfg.Mail.Maildir) == "" {
			return fmt.Errorf("mail.maildir is required")
		}
	case SourceIMAP:
		if err := ValidateIMAP(cfg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("mail.source must be %q or %q, got %q", SourceMaildir, SourceIMAP, cfg.Mail.Source)
	}
	if cfg.Mail.RefreshInterval <= 0 {
		return fmt.Errorf("mail.refresh_interval must be > 0")
	}
	if cfg.Mail.SyncCommand != "" && cfg.Mail.SyncTimeout <= 0 {
		return fmt.Errorf("mail.sync_timeout must be > 0")
	}
	return validatePort("mail.port", cfg.Mail.Port)
}

func ValidateIMAP(cfg Config) error {
	if cfg.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if cfg.Auth.Username == "" {
		return fmt.Errorf("auth.username is required")
	}
	if cfg.Auth.Password == "" {
		return fmt.Errorf("auth.password is required")
	}
	return nil
}

func ValidateSystemd(cfg Config) error {
	if len(cfg.Systemd.Services) == 0 {
		return fmt.Errorf("systemd.services must list at least one unit")
	}
	if cfg.Systemd.Timeout <= 0 {
		return fmt.Errorf("systemd.timeout must be > 0")
	}
	return validatePort("systemd.port", cfg.Systemd.Port)
}

func ValidateWeather(cfg Config) error {
	if cfg.Weather.APIKey == "" {
		return fmt.Errorf("weather.api_key is required")
	}
	if cfg.Weather.Lat < -90 || cfg.Weather.Lat > 90 {
		return fmt.Errorf("weather.lat out of range: %v", cfg.Weather.Lat)
	}
	if cfg.Weather.Lon < -180 || cfg.Weather.Lon > 180 {
		return fmt.Errorf("weather.lon out of range: %v", cfg.Weather.Lon)
	}
	if cfg.Weather.CacheTTL <= 0 {
		return fmt.Errorf("weather.cache_ttl must be > 0")
	}
	return validatePort("weather.port", cfg.Weather.Port)
}

func validatePort(key string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", key, port)
	}
	return nil
}

// Addr joins a host and port into a listen address.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (m MailConfig) Interval() time.Duration {
	return time.Duration(m.RefreshInterval) * time.Second
}

func (m MailConfig) Timeout() time.Duration {
	return time.Duration(m.SyncTimeout) * time.Second
}

func (s SystemdConfig) CommandTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (w WeatherConfig) TTL() time.Duration {
	return time.Duration(w.CacheTTL) * time.Second
}
