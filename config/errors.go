// Package config provides error definitions for configuration management
package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName        = errors.New("invalid application name")
	ErrInvalidEnvironment    = errors.New("invalid environment")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidLogFormat      = errors.New("invalid log format")
	ErrInvalidPort           = errors.New("invalid port number")
	ErrInvalidWebSocketPath  = errors.New("invalid websocket path")
	ErrInvalidMaxConnections = errors.New("invalid max connections")
	ErrInvalidMailboxSize    = errors.New("invalid mailbox size")
	ErrInvalidStorageEngine  = errors.New("invalid storage engine")
	ErrInvalidDatabasePath   = errors.New("invalid database path")
	ErrInvalidAdmin          = errors.New("admin account needs a password")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrUnsupportedFormat   = errors.New("unsupported configuration format")
	ErrEnvironmentVarError = errors.New("environment variable error")
)
