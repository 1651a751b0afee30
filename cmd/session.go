package cmd

import (
	"log/slog"

	"github.com/BioHazard786/peerlink/internal/config"
	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/rtc"
	"github.com/BioHazard786/peerlink/internal/signaling"
)

// Flags shared by connect and answer.
var (
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	opts.STUNServer = flagSTUN
	opts.TURNServer = flagTURN
	opts.TURNUser = flagTURNUser
	opts.TURNPass = flagTURNPass
	opts.ForceRelay = flagRelay
	return config.Load(opts)
}

// NewSession builds an offering session on pion with scheme-routed
// signaling.
func NewSession(cfg *config.Config) *peer.Session {
	logger := slog.Default()
	factory := &rtc.Factory{Config: rtc.Configuration(cfg), Logger: logger}
	return peer.New(factory, signaling.NewExchanger(logger),
		peer.WithLogger(logger),
		peer.WithChannelLabel(cfg.ChannelLabel),
	)
}
