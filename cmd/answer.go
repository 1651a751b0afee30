package cmd

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/peerlink/internal/config"
	"github.com/BioHazard786/peerlink/internal/rtc"
	"github.com/BioHazard786/peerlink/internal/signaling"
	"github.com/BioHazard786/peerlink/internal/ui"
	"github.com/spf13/cobra"
)

var flagListen string

var answerCmd = &cobra.Command{
	Use:     "answer",
	Aliases: []string{"a"},
	Short:   "Answer offers from connecting peers",
	Long: `Run the remote end of a session: accept complete offers over HTTP
(POST /offer) or WebSocket (/ws), answer them once candidate gathering has
finished and echo every data channel message back. Pings are answered
with pongs.

Examples:
  peerlink answer
  peerlink answer --listen :9000 --stun none`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{ListenAddr: flagListen})
		if err != nil {
			return err
		}

		logger := slog.Default()
		answerer := rtc.NewAnswerer(rtc.Configuration(cfg), logger)
		server := signaling.NewServer(answerer, signaling.WithServerLogger(logger))

		fmt.Println(ui.ListenInfoView(cfg.ListenAddr))
		serveErr := server.ListenAndServe(cmd.Context(), cfg.ListenAddr)

		peers := answerer.Peers()
		if err := answerer.Close(); err != nil {
			logger.Warn("closing peers failed", "error", err)
			ui.PrintWarning("Some peer connections did not close cleanly")
		}

		rows := make([]ui.PeerSummaryRow, len(peers))
		for i, p := range peers {
			rows[i] = ui.PeerSummaryRow{
				ID:         p.ID,
				State:      p.State,
				Channels:   p.Channels,
				Messages:   p.Messages,
				AnsweredAt: p.AnsweredAt,
			}
		}
		fmt.Println()
		ui.PrintInfof("Stopped answering on %s", cfg.ListenAddr)
		ui.RenderPeerSummary(rows)

		if serveErr != nil {
			return fmt.Errorf("serve %s: %w", cfg.ListenAddr, serveErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(answerCmd)

	answerCmd.Flags().StringVarP(&flagListen, "listen", "L", "", "Listen address (default :8080)")
	addICEFlags(answerCmd)
}
