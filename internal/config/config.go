// Package config carries the server's settings with the precedence
// file > environment > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Database  DatabaseConfig  `json:"database"`
	WebSocket WebSocketConfig `json:"websocket"`
	Room      RoomConfig      `json:"room"`
	Debug     bool            `json:"debug"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	SendBuffer   int           `json:"send_buffer"`
}

type RoomConfig struct {
	// FlushInterval is the persistence debounce window; repeated changes
	// within it coalesce into a single flush.
	FlushInterval time.Duration `json:"flush_interval"`
	// EventBuffer sizes each room's event channel.
	EventBuffer int `json:"event_buffer"`
}

// Default returns production-ready defaults.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./syncroom.db",
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   256,
		},
		Room: RoomConfig{
			FlushInterval: 5 * time.Second,
			EventBuffer:   256,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}
	if c.Room.FlushInterval <= 0 {
		return fmt.Errorf("room flush interval must be positive")
	}
	if c.Room.EventBuffer <= 0 {
		return fmt.Errorf("room event buffer must be positive")
	}
	return nil
}

// FromEnv overlays SYNCROOM_* environment variables on the defaults.
// Unparseable values are ignored in favor of the defaults.
func FromEnv() *Config {
	c := Default()

	if host := os.Getenv("SYNCROOM_HTTP_HOST"); host != "" {
		c.HTTP.Host = host
	}
	if port := os.Getenv("SYNCROOM_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.HTTP.Port = p
		}
	}
	if path := os.Getenv("SYNCROOM_DATABASE_PATH"); path != "" {
		c.Database.Path = path
	}
	envDuration("SYNCROOM_HTTP_READ_TIMEOUT", &c.HTTP.ReadTimeout)
	envDuration("SYNCROOM_HTTP_WRITE_TIMEOUT", &c.HTTP.WriteTimeout)
	envDuration("SYNCROOM_WEBSOCKET_PING_INTERVAL", &c.WebSocket.PingInterval)
	envDuration("SYNCROOM_WEBSOCKET_READ_TIMEOUT", &c.WebSocket.ReadTimeout)
	envDuration("SYNCROOM_WEBSOCKET_WRITE_TIMEOUT", &c.WebSocket.WriteTimeout)
	envDuration("SYNCROOM_ROOM_FLUSH_INTERVAL", &c.Room.FlushInterval)
	if size := os.Getenv("SYNCROOM_WEBSOCKET_SEND_BUFFER"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			c.WebSocket.SendBuffer = n
		}
	}
	if debug := os.Getenv("SYNCROOM_DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			c.Debug = b
		}
	}
	return c
}

func envDuration(name string, dst *time.Duration) {
	if raw := os.Getenv(name); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		}
	}
}

// configFile mirrors Config with string durations for JSON readability.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Database *struct {
		Path string `json:"path"`
	} `json:"database"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		SendBuffer   int    `json:"send_buffer"`
	} `json:"websocket"`
	Room *struct {
		FlushInterval string `json:"flush_interval"`
		EventBuffer   int    `json:"event_buffer"`
	} `json:"room"`
	Debug *bool `json:"debug"`
}

// FromFile loads a JSON config file over the defaults and validates the
// result.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var f configFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	c := Default()
	if f.HTTP != nil {
		if f.HTTP.Host != "" {
			c.HTTP.Host = f.HTTP.Host
		}
		if f.HTTP.Port > 0 {
			c.HTTP.Port = f.HTTP.Port
		}
		fileDuration(f.HTTP.ReadTimeout, &c.HTTP.ReadTimeout)
		fileDuration(f.HTTP.WriteTimeout, &c.HTTP.WriteTimeout)
	}
	if f.Database != nil && f.Database.Path != "" {
		c.Database.Path = f.Database.Path
	}
	if f.WebSocket != nil {
		fileDuration(f.WebSocket.PingInterval, &c.WebSocket.PingInterval)
		fileDuration(f.WebSocket.ReadTimeout, &c.WebSocket.ReadTimeout)
		fileDuration(f.WebSocket.WriteTimeout, &c.WebSocket.WriteTimeout)
		if f.WebSocket.SendBuffer > 0 {
			c.WebSocket.SendBuffer = f.WebSocket.SendBuffer
		}
	}
	if f.Room != nil {
		fileDuration(f.Room.FlushInterval, &c.Room.FlushInterval)
		if f.Room.EventBuffer > 0 {
			c.Room.EventBuffer = f.Room.EventBuffer
		}
	}
	if f.Debug != nil {
		c.Debug = *f.Debug
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return c, nil
}

func fileDuration(raw string, dst *time.Duration) {
	if raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		}
	}
}

// Load resolves configuration with the precedence file > env > defaults.
// A missing or unreadable file falls back to the environment/defaults.
func Load(path string) *Config {
	c := FromEnv()
	if path != "" {
		if fromFile, err := FromFile(path); err == nil {
			c = fromFile
		}
	}
	return c
}
