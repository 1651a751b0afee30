package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Default configuration values
const (
	DefaultListenAddr   = ":8080"
	DefaultSTUN         = "stun:stun.l.google.com:19302"
	DefaultChannelLabel = "channel"

	// STUNDisabled turns off the STUN server entirely. Only host
	// candidates are gathered then.
	STUNDisabled = "none"
)

var (
	ErrInvalidPeerURL   = errors.New("invalid peer url")
	ErrRelayWithoutTURN = errors.New("relay forced but no TURN server configured")
)

// Config holds application configuration
type Config struct {
	// PeerURL is the signaling target the offer is sent to. Empty means
	// unconfigured.
	PeerURL string

	// ListenAddr is where the answer server listens.
	ListenAddr string

	// ChannelLabel names the data channel opened after negotiation.
	ChannelLabel string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to relay candidates.
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	PeerURL      string
	ListenAddr   string
	ChannelLabel string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	ForceRelay   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		PeerURL:      pick(opts.PeerURL, "PEER_URL", ""),
		ListenAddr:   pick(opts.ListenAddr, "LISTEN_ADDR", DefaultListenAddr),
		ChannelLabel: pick(opts.ChannelLabel, "CHANNEL_LABEL", DefaultChannelLabel),
		STUNServer:   pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:   pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:     pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:     pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ForceRelay:   opts.ForceRelay,
	}

	if !cfg.ForceRelay {
		if v, ok := os.LookupEnv("FORCE_RELAY"); ok && v != "" {
			force, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parse FORCE_RELAY: %w", err)
			}
			cfg.ForceRelay = force
		}
	}

	if cfg.PeerURL != "" {
		if err := validatePeerURL(cfg.PeerURL); err != nil {
			return nil, err
		}
	}
	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, ErrRelayWithoutTURN
	}

	return cfg, nil
}

// pick returns flag, then the environment variable key, then def.
func pick(flag, key, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func validatePeerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidPeerURL, raw, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w %q: unsupported scheme %q", ErrInvalidPeerURL, raw, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w %q: missing host", ErrInvalidPeerURL, raw)
	}
	return nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" || strings.EqualFold(c.STUNServer, STUNDisabled) {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
