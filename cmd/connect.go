package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/BioHazard786/peerlink/internal/config"
	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/BioHazard786/peerlink/internal/rtc"
	"github.com/BioHazard786/peerlink/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagPeer     string
	flagLabel    string
	flagHeadless bool
	flagTimeout  time.Duration
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	Aliases: []string{"c"},
	Short:   "Negotiate a session with a remote peer",
	Long: `Negotiate a WebRTC session with a remote peer and open a data channel.

The offer is sent once candidate gathering has completed. http(s) peer
URLs receive it as a JSON POST, ws(s) peer URLs over a WebSocket.

Keys: n negotiate, c close channel, x close connection, p ping, q quit.

Examples:
  peerlink connect --peer http://localhost:8080/offer
  peerlink connect --peer ws://localhost:8080/ws --label chat
  peerlink connect --peer http://localhost:8080/offer --headless`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{
			PeerURL:      flagPeer,
			ChannelLabel: flagLabel,
		})
		if err != nil {
			return err
		}

		session := NewSession(cfg)
		defer session.Shutdown()

		if flagHeadless {
			return runHeadless(cmd.Context(), session, cfg.PeerURL)
		}
		return ui.RunSession(session, cfg.PeerURL)
	},
}

// runHeadless negotiates, waits for the channel, pings once and closes.
func runHeadless(ctx context.Context, session *peer.Session, target string) error {
	if target == "" {
		return peer.ErrTargetNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	sp := ui.NewConnectionSpinner("Negotiating with " + target + "...")
	sp.Start()
	defer sp.Stop()

	if err := session.Negotiate(ctx, target); err != nil {
		sp.Error("Negotiation failed")
		return err
	}
	sp.UpdateMessage("Waiting for channel...")

	if err := awaitUpdate(ctx, session, peer.UpdateChannelOpen); err != nil {
		sp.Error("Channel did not open")
		return err
	}
	sp.Success(fmt.Sprintf("Channel %q open", session.Snapshot().ChannelLabel))

	frame, err := rtc.EncodePing(1, time.Now())
	if err != nil {
		return err
	}
	if err := session.Send(frame); err != nil {
		return err
	}
	rtt, err := awaitPong(ctx, session)
	if err != nil {
		return err
	}
	ui.PrintSuccessf("%s pong in %s", ui.IconTime, rtt.Round(time.Millisecond))

	fmt.Println()
	fmt.Println(ui.SessionTableView(session.Snapshot()))

	return session.CloseConnection()
}

func awaitUpdate(ctx context.Context, session *peer.Session, kind peer.UpdateKind) error {
	for {
		select {
		case u, ok := <-session.Updates():
			if !ok {
				return peer.ErrSessionStopped
			}
			switch u.Kind {
			case kind:
				return nil
			case peer.UpdateChannelFailed:
				return u.Err
			case peer.UpdateTransportState:
				if u.Snapshot.Connection == peer.ConnectionClosed {
					return fmt.Errorf("connection %s", u.Detail)
				}
			}
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", kind, ctx.Err())
		}
	}
}

func awaitPong(ctx context.Context, session *peer.Session) (time.Duration, error) {
	for {
		select {
		case u, ok := <-session.Updates():
			if !ok {
				return 0, peer.ErrSessionStopped
			}
			if u.Kind != peer.UpdateMessage {
				continue
			}
			msg, err := rtc.DecodeMessage(u.Data)
			if err != nil || msg.Type != rtc.TypePong {
				continue
			}
			var p rtc.PingPayload
			if err := msg.DecodePayload(&p); err != nil {
				return 0, err
			}
			return p.RTT(time.Now()), nil
		case <-ctx.Done():
			return 0, fmt.Errorf("wait for pong: %w", ctx.Err())
		}
	}
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringVarP(&flagPeer, "peer", "P", "", "Peer signaling URL (http, https, ws or wss)")
	connectCmd.Flags().StringVarP(&flagLabel, "label", "l", "", "Data channel label")
	connectCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Negotiate, ping once and exit without the interactive view")
	connectCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Headless mode deadline")
	addICEFlags(connectCmd)
}

func addICEFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", `Custom STUN server ("none" disables STUN)`)
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
