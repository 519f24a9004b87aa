// Package config loads keyz's TOML configuration file, following this
// precedence: an explicit path, then KEYZ_CONFIG, then ./keyz.toml if
// present, then built-in defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/viktor111/keyz/internal/protocol"
	"github.com/viktor111/keyz/internal/store"
)

const (
	defaultConfigPath = "keyz.toml"
	envConfigPath     = "KEYZ_CONFIG"
)

// Config is the root of the TOML document and its three sections.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Protocol ProtocolConfig `toml:"protocol"`
}

// ServerConfig is the listener address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port uint16 `toml:"port"`
}

// StoreConfig matches store.Config field-for-field, in wire form.
type StoreConfig struct {
	CompressionThreshold int     `toml:"compression_threshold"`
	CleanupIntervalMS    uint64  `toml:"cleanup_interval_ms"`
	DefaultTTLSecs       *uint64 `toml:"default_ttl_secs"`
}

// ProtocolConfig matches protocol.Config field-for-field, in wire form.
type ProtocolConfig struct {
	MaxMessageBytes        uint32 `toml:"max_message_bytes"`
	IdleTimeoutSecs        uint64 `toml:"idle_timeout_secs"`
	CloseCommand           string `toml:"close_command"`
	TimeoutResponse        string `toml:"timeout_response"`
	InvalidCommandResponse string `toml:"invalid_command_response"`
}

// Default returns the built-in configuration, matching the defaults
// protocol.DefaultConfig and store.DefaultConfig already carry.
func Default() Config {
	storeDefault := store.DefaultConfig()
	protoDefault := protocol.DefaultConfig()
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 7667},
		Store: StoreConfig{
			CompressionThreshold: storeDefault.CompressionThreshold,
			CleanupIntervalMS:    storeDefault.CleanupIntervalMS,
		},
		Protocol: ProtocolConfig{
			MaxMessageBytes:        protoDefault.MaxMessageBytes,
			IdleTimeoutSecs:        protoDefault.IdleTimeoutSecs,
			CloseCommand:           protoDefault.CloseCommand,
			TimeoutResponse:        protoDefault.TimeoutResponse,
			InvalidCommandResponse: protoDefault.InvalidCommandResponse,
		},
	}
}

// Load resolves the configuration file by precedence: explicitPath if
// non-empty, else $KEYZ_CONFIG, else ./keyz.toml if it exists, else the
// built-in defaults. It returns the path actually used, or "" when
// defaults were used with no file present.
func Load(explicitPath string) (Config, string, error) {
	if explicitPath != "" {
		cfg, err := loadFile(explicitPath)
		return cfg, explicitPath, err
	}

	if envPath := os.Getenv(envConfigPath); envPath != "" {
		cfg, err := loadFile(envPath)
		return cfg, envPath, err
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := loadFile(defaultConfigPath)
		return cfg, defaultConfigPath, err
	} else if !os.IsNotExist(err) {
		return Config{}, "", protocol.Wrap(protocol.KindConfigIO, defaultConfigPath, err)
	}

	return Default(), "", nil
}

func loadFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, protocol.Wrap(protocol.KindConfigIO, path, err)
	}
	return FromTOML(string(content))
}

// FromTOML parses a TOML document into a validated Config, applying
// built-in defaults to any section left out entirely.
func FromTOML(input string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(input) == "" {
		return cfg, nil
	}

	if _, err := toml.Decode(input, &cfg); err != nil {
		return Config{}, protocol.Wrap(protocol.KindConfigParse, "", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section and normalizes an empty host to the
// loopback default rather than rejecting it.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return protocol.New(protocol.KindInvalidConfig, "server.port must be greater than zero")
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = "127.0.0.1"
	}

	if c.Store.CompressionThreshold == 0 {
		return protocol.New(protocol.KindInvalidConfig, "store.compression_threshold must be greater than zero")
	}
	if c.Store.CleanupIntervalMS == 0 {
		return protocol.New(protocol.KindInvalidConfig, "store.cleanup_interval_ms must be greater than zero")
	}
	if c.Store.DefaultTTLSecs != nil && *c.Store.DefaultTTLSecs == 0 {
		return protocol.New(protocol.KindInvalidConfig, "store.default_ttl_secs cannot be zero (omit it instead)")
	}

	return c.Protocol.ToProtocol().Validate()
}

// SocketAddr resolves the configured host/port into a dialable string,
// failing with InvalidSocketAddress if the host cannot be resolved.
func (c ServerConfig) SocketAddr() (string, error) {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", host, c.Port)
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return "", protocol.New(protocol.KindInvalidSocketAddress, addr)
	}
	return addr, nil
}

// ToStore converts the TOML-shaped StoreConfig into store.Config.
func (c StoreConfig) ToStore() store.Config {
	cfg := store.Config{
		CompressionThreshold: c.CompressionThreshold,
		CleanupIntervalMS:    c.CleanupIntervalMS,
	}
	if c.DefaultTTLSecs != nil {
		cfg.HasDefaultTTL = true
		cfg.DefaultTTLSecs = *c.DefaultTTLSecs
	}
	return cfg
}

// ToProtocol converts the TOML-shaped ProtocolConfig into protocol.Config.
func (c ProtocolConfig) ToProtocol() protocol.Config {
	return protocol.Config{
		MaxMessageBytes:        c.MaxMessageBytes,
		IdleTimeoutSecs:        c.IdleTimeoutSecs,
		CloseCommand:           c.CloseCommand,
		TimeoutResponse:        c.TimeoutResponse,
		InvalidCommandResponse: c.InvalidCommandResponse,
	}
}
