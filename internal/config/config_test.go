package config

import (
	"errors"
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PEER_URL", "LISTEN_ADDR", "CHANNEL_LABEL", "STUN_SERVER",
		"TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD", "FORCE_RELAY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		ListenAddr:   DefaultListenAddr,
		ChannelLabel: DefaultChannelLabel,
		STUNServer:   DefaultSTUN,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("Load = %+v, want %+v", cfg, want)
	}
	if cfg.GetTURNServers() != nil {
		t.Errorf("TURN servers = %v, want none", cfg.GetTURNServers())
	}
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEER_URL", "http://env.example/offer")
	t.Setenv("CHANNEL_LABEL", "env-label")
	t.Setenv("LISTEN_ADDR", ":9000")

	cfg, err := Load(Options{PeerURL: "ws://flag.example/ws"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeerURL != "ws://flag.example/ws" {
		t.Errorf("PeerURL = %q, want flag value", cfg.PeerURL)
	}
	if cfg.ChannelLabel != "env-label" {
		t.Errorf("ChannelLabel = %q, want env value", cfg.ChannelLabel)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want env value", cfg.ListenAddr)
	}
}

func TestLoadRejectsBadPeerURL(t *testing.T) {
	clearEnv(t)

	for _, raw := range []string{"ftp://example.com", "example.com/offer", "http://", "://bad"} {
		if _, err := Load(Options{PeerURL: raw}); !errors.Is(err, ErrInvalidPeerURL) {
			t.Errorf("Load(%q) err = %v, want ErrInvalidPeerURL", raw, err)
		}
	}
}

func TestLoadForceRelay(t *testing.T) {
	clearEnv(t)

	if _, err := Load(Options{ForceRelay: true}); !errors.Is(err, ErrRelayWithoutTURN) {
		t.Errorf("err = %v, want ErrRelayWithoutTURN", err)
	}

	t.Setenv("FORCE_RELAY", "true")
	t.Setenv("TURN_SERVER", "turn.example.com")
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ForceRelay {
		t.Error("FORCE_RELAY=true not applied")
	}

	t.Setenv("FORCE_RELAY", "maybe")
	if _, err := Load(Options{}); err == nil {
		t.Error("expected error for unparsable FORCE_RELAY")
	}
}

func TestICEServers(t *testing.T) {
	cfg := &Config{STUNServer: STUNDisabled, TURNServer: "turn:relay.example.com", TURNUser: "u", TURNPass: "p"}

	if got := cfg.GetSTUNServers(); got != nil {
		t.Errorf("STUN servers = %v, want none when disabled", got)
	}
	want := []string{
		"turn:relay.example.com:3478?transport=udp",
		"turn:relay.example.com:3478?transport=tcp",
		"turns:relay.example.com:5349?transport=tcp",
	}
	if got := cfg.GetTURNServers(); !reflect.DeepEqual(got, want) {
		t.Errorf("TURN servers = %v, want %v", got, want)
	}
	if user, pass := cfg.GetTURNCredentials(); user != "u" || pass != "p" {
		t.Errorf("credentials = %q/%q", user, pass)
	}
}
