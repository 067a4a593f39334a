// Package config provides configuration management for the harsh server
package config

import (
	"fmt"
	"time"
)

// Environment names the deployment the server runs in.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

var environments = map[Environment]bool{
	EnvDevelopment: true,
	EnvTesting:     true,
	EnvStaging:     true,
	EnvProduction:  true,
}

func (e Environment) String() string { return string(e) }

// IsValid reports whether e is one of the known environments.
func (e Environment) IsValid() bool { return environments[e] }

// LogLevel is the lowercase name of a logrus level.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

var logLevels = map[LogLevel]bool{
	LogLevelTrace: true,
	LogLevelDebug: true,
	LogLevelInfo:  true,
	LogLevelWarn:  true,
	LogLevelError: true,
	LogLevelFatal: true,
}

func (l LogLevel) String() string { return string(l) }

// IsValid reports whether l names a supported level.
func (l LogLevel) IsValid() bool { return logLevels[l] }

// StorageEngine names an ordered key-value backend
type StorageEngine string

const (
	EngineBadger StorageEngine = "badger"
	EngineSQLite StorageEngine = "sqlite"
)

// IsValid checks if the engine is supported
func (e StorageEngine) IsValid() bool {
	return e == EngineBadger || e == EngineSQLite
}

// Config represents the complete harsh configuration
type Config struct {
	App      AppConfig      `yaml:"app" json:"app"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Network  NetworkConfig  `yaml:"network" json:"network"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Actor    ActorConfig    `yaml:"actor" json:"actor"`
	Security SecurityConfig `yaml:"security" json:"security"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string      `yaml:"name" json:"name"`
	Version     string      `yaml:"version" json:"version"`
	Environment Environment `yaml:"environment" json:"environment"`
	Debug       bool        `yaml:"debug" json:"debug"`
}

// LogConfig selects the logrus level and formatter. Output is stdout,
// stderr or a file path; Fields are attached to every entry.
type LogConfig struct {
	Level  LogLevel               `yaml:"level" json:"level"`
	Format string                 `yaml:"format" json:"format"` // text or json
	Output string                 `yaml:"output" json:"output"`
	Color  bool                   `yaml:"color" json:"color"`
	Fields map[string]interface{} `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	TCP       TCPConfig        `yaml:"tcp" json:"tcp"`
	WebSocket WebSocketConfig  `yaml:"websocket" json:"websocket"`
	Limits    ConnectionLimits `yaml:"limits" json:"limits"`
	Timeouts  TimeoutConfig    `yaml:"timeouts" json:"timeouts"`
}

// TCPConfig is the line listener. Port 0 picks a free port; BufferSize is
// also the longest line accepted from a client.
type TCPConfig struct {
	Address           string        `yaml:"address" json:"address"`
	Port              int           `yaml:"port" json:"port"`
	KeepAlive         bool          `yaml:"keep_alive" json:"keep_alive"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval" json:"keep_alive_interval"`
	BufferSize        int           `yaml:"buffer_size" json:"buffer_size"`
}

// Listen returns the host:port form of the TCP address
func (c TCPConfig) Listen() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// WebSocketConfig configures the optional WebSocket endpoint
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// Listen returns the host:port form of the WebSocket address
func (c WebSocketConfig) Listen() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// ConnectionLimits caps concurrent clients per listener, 0 is unlimited.
type ConnectionLimits struct {
	MaxConnections int `yaml:"max_connections" json:"max_connections"`
}

// TimeoutConfig contains transport timeouts. Zero disables a timeout.
type TimeoutConfig struct {
	Read  time.Duration `yaml:"read" json:"read"`
	Write time.Duration `yaml:"write" json:"write"`
}

// StorageConfig selects and configures the key-value backend
type StorageConfig struct {
	Engine       StorageEngine `yaml:"engine" json:"engine"`
	DatabasePath string        `yaml:"database_path" json:"database_path"`
	InMemory     bool          `yaml:"in_memory" json:"in_memory"`
	SyncWrites   bool          `yaml:"sync_writes" json:"sync_writes"`
}

// ActorConfig contains actor runtime settings
type ActorConfig struct {
	MailboxSize    int           `yaml:"mailbox_size" json:"mailbox_size"`
	ProcessTimeout time.Duration `yaml:"process_timeout" json:"process_timeout"`
}

// SecurityConfig contains password hashing settings
type SecurityConfig struct {
	// Salt appended to passwords before hashing
	Salt string `yaml:"salt" json:"salt"`

	// Admin is created as the first server operator when the user table is empty
	Admin AdminConfig `yaml:"admin" json:"admin"`
}

// AdminConfig describes the bootstrap operator account
type AdminConfig struct {
	Name     string `yaml:"name" json:"name"`
	Password string `yaml:"password" json:"password"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "harsh",
			Version:     "0.1.0",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stdout",
		},
		Network: NetworkConfig{
			TCP: TCPConfig{
				Address:           "127.0.0.1",
				Port:              42069,
				KeepAlive:         true,
				KeepAliveInterval: 60 * time.Second,
				BufferSize:        64 * 1024,
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Address: "127.0.0.1",
				Port:    42070,
				Path:    "/ws",
			},
			Limits: ConnectionLimits{
				MaxConnections: 1000,
			},
			Timeouts: TimeoutConfig{
				Write: 10 * time.Second,
			},
		},
		Storage: StorageConfig{
			Engine:       EngineBadger,
			DatabasePath: "./database",
		},
		Actor: ActorConfig{
			MailboxSize:    1000,
			ProcessTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			Salt: ":)",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if c.App.Environment != "" && !c.App.Environment.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidEnvironment, c.App.Environment)
	}

	if !c.Log.Level.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: %s", ErrInvalidLogFormat, c.Log.Format)
	}

	if c.Network.TCP.Port < 0 || c.Network.TCP.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Network.TCP.Port)
	}
	if c.Network.WebSocket.Enabled {
		if c.Network.WebSocket.Port < 0 || c.Network.WebSocket.Port > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, c.Network.WebSocket.Port)
		}
		if c.Network.WebSocket.Path == "" || c.Network.WebSocket.Path[0] != '/' {
			return fmt.Errorf("%w: %q", ErrInvalidWebSocketPath, c.Network.WebSocket.Path)
		}
	}
	if c.Network.Limits.MaxConnections < 0 {
		return ErrInvalidMaxConnections
	}

	if !c.Storage.Engine.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStorageEngine, c.Storage.Engine)
	}
	if c.Storage.DatabasePath == "" && !c.Storage.InMemory {
		return ErrInvalidDatabasePath
	}

	if c.Actor.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}

	if c.Security.Admin.Name != "" && c.Security.Admin.Password == "" {
		return ErrInvalidAdmin
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}
