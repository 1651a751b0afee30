package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/peerlink/internal/ui"
	"github.com/BioHazard786/peerlink/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "peerlink",
	Short:   "Negotiate a WebRTC data channel with a remote peer",
	Long:    `peerlink negotiates a single WebRTC peer connection with a remote endpoint by exchanging a complete offer over HTTP or WebSocket, then opens one data channel on it. The connect command drives the session interactively; the answer command runs the remote endpoint.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
