package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

func (l LogLevel) ToSlog() slog.Level {
	switch LogLevel(strings.ToUpper(string(l))) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type LogFormat string

const (
	LogFormatPlaintext LogFormat = "plaintext"
	LogFormatJSON      LogFormat = "json"
)

type AppEnv string

const (
	AppEnvDev        AppEnv = "dev"
	AppEnvProduction AppEnv = "production"
)

// ServeMode selects the front end that accepts connections.
type ServeMode string

const (
	// ServeModeRaw reads request lines directly from TCP connections.
	ServeModeRaw ServeMode = "raw"
	// ServeModeHTTP mounts the same router on a net/http server.
	ServeModeHTTP ServeMode = "http"
)

type AuditDriver string

const (
	AuditDriverFile     AuditDriver = "file"
	AuditDriverPostgres AuditDriver = "postgres"
)

type Config struct {
	App    AppConfig
	Log    LogConfig
	Sentry SentryConfig
	Pages  PagesConfig
	Assets AssetsConfig
	Audit  AuditConfig
	Tools  ToolsConfig
}

type AppConfig struct {
	Debug           bool
	Host            string
	Port            uint32
	Name            string
	Env             AppEnv
	Version         string
	Mode            ServeMode
	RequestTimeout  uint32 // in seconds
	ShutdownTimeout int32  // in seconds
	MaxConnections  int
}

type LogConfig struct {
	Format  LogFormat
	Level   LogLevel
	Verbose bool
}

type SentryConfig struct {
	Enabled    bool
	DSN        string
	SampleRate float64
	TracesRate float64
}

type PagesConfig struct {
	// Directory that page keys are resolved against
	Dir string
	// Root markdown document, served for the empty page key
	Root string
	// Regenerate every page on every request instead of reusing the cache
	Live bool
	// Regenerate cached pages when their source file changes on disk
	Watch       bool
	Extension   string
	Description string
	Indent      string
}

type AssetsConfig struct {
	Dir       string
	Whitelist []string
	ChunkSize int
}

type AuditConfig struct {
	Enabled     bool
	Driver      AuditDriver
	Path        string
	DatabaseURL string
	// Maximum size of the audit log in megabytes before it gets rotated
	MaxSize int
}

type ToolsConfig struct {
	// Debounce timer between subsequent source file changes, in milliseconds
	Debounce int32
}

// Addr returns the host:port pair the server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%v:%v", c.App.Host, c.App.Port)
}

// BaseURL returns the url that is printed when the server starts.
func (c Config) BaseURL() string {
	host := c.App.Host
	if len(host) == 0 || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%v", host, c.App.Port)
}

func (c *Config) IsTest() bool {
	return flag.Lookup("test.v") != nil || strings.HasSuffix(os.Args[0], ".test") ||
		strings.Contains(os.Args[0], "/_test/")
}

func newReader() *viper.Viper {
	reader := viper.NewWithOptions(viper.KeyDelimiter("_"))
	reader.SetConfigType("toml")

	reader.SetDefault("app_debug", false)
	reader.SetDefault("app_host", "0.0.0.0")
	reader.SetDefault("app_port", 7250)
	reader.SetDefault("app_name", "tweb")
	reader.SetDefault("app_env", string(AppEnvProduction))
	reader.SetDefault("app_version", "dev")
	reader.SetDefault("app_mode", string(ServeModeRaw))
	reader.SetDefault("app_requesttimeout", 30)
	reader.SetDefault("app_shutdowntimeout", 2)
	reader.SetDefault("app_maxconnections", 64)

	reader.SetDefault("log_format", string(LogFormatPlaintext))
	reader.SetDefault("log_level", string(LogLevelInfo))
	reader.SetDefault("log_verbose", false)

	reader.SetDefault("sentry_enabled", false)
	reader.SetDefault("sentry_dsn", "")
	reader.SetDefault("sentry_samplerate", 1.0)
	reader.SetDefault("sentry_tracesrate", 0.0)

	reader.SetDefault("pages_dir", ".")
	reader.SetDefault("pages_root", "")
	reader.SetDefault("pages_live", false)
	reader.SetDefault("pages_watch", false)
	reader.SetDefault("pages_extension", ".md")
	reader.SetDefault("pages_description", "description.txt")
	reader.SetDefault("pages_indent", "    ")

	reader.SetDefault("assets_dir", ".")
	reader.SetDefault("assets_whitelist", []string{"favicon.ico"})
	reader.SetDefault("assets_chunksize", 8)

	reader.SetDefault("audit_enabled", true)
	reader.SetDefault("audit_driver", string(AuditDriverFile))
	reader.SetDefault("audit_path", "")
	reader.SetDefault("audit_databaseurl", "")
	reader.SetDefault("audit_maxsize", 10)

	reader.SetDefault("tools_debounce", 200)

	return reader
}

// Default returns the configuration that is used when no config.toml, .env file or environment
// overrides are present.
func Default() *Config {
	var config Config
	if err := newReader().Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return &config
}

// Load the configuration file from the specified filesystem.
// The config.toml file is optional, missing values fall back to their defaults.
// You can specify additional .env files to load, by default this only checks for ".env" in the
// current working directory.
// Environment variables override both, e.g. PAGES_LIVE=true or APP_PORT=8080.
func Load(configFS fs.FS, dotenvFiles ...string) (*Config, error) {
	reader := newReader()

	if configFS != nil {
		file, err := configFS.Open("config.toml")
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("No config.toml found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("could not open config.toml: %w", err)
		default:
			defer file.Close()
			if err = reader.ReadConfig(file); err != nil {
				return nil, fmt.Errorf("could not load the app configuration: %w", err)
			}
		}
	}

	// Environment override
	err := godotenv.Load(dotenvFiles...)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("No .env file found, continuing...")
	} else if err != nil {
		return nil, fmt.Errorf(".env file found, but could not load it: %w", err)
	}
	reader.AutomaticEnv()

	var config Config
	if err := reader.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("invalid config format: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.App.Debug && !config.IsTest() {
		slog.Warn("APP_DEBUG is turned on, do not run this mode in production!")
	}

	return &config, nil
}

// Validate reports configuration values that the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.App.Mode {
	case ServeModeRaw, ServeModeHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown app mode %q", c.App.Mode))
	}
	switch c.Log.Format {
	case LogFormatPlaintext, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Audit.Enabled {
		switch c.Audit.Driver {
		case AuditDriverFile:
		case AuditDriverPostgres:
			if len(c.Audit.DatabaseURL) == 0 {
				errs = append(errs, errors.New("the postgres audit driver requires AUDIT_DATABASEURL"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown audit driver %q", c.Audit.Driver))
		}
	}
	if c.Assets.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("asset chunk size must be positive, got %d", c.Assets.ChunkSize))
	}
	if c.App.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("max connections must be positive, got %d", c.App.MaxConnections))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
