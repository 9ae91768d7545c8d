package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "forrstd",
	Short: "forrstd runs the Forrst RPC substrate's demo server",
	Long: `forrstd boots a demo Forrst server: it registers the reserved
system functions, the example domain functions, and the canonical HTTP
transport, then serves requests until interrupted.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a forrstd config file (yaml)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the forrstd command tree.
func Execute() error {
	return rootCmd.Execute()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
