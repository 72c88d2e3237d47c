package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

// RootCmd is the base command for sosctl.
var RootCmd = &cobra.Command{
	Use:   "sosctl",
	Short: "Development client for the SOS alert service",
	Long: `sosctl issues development tokens, seeds the user directory and drives the
reporter and responder flows against a running server.`,
	SilenceUsage: true,
}

func main() {
	_ = util.LoadEnv(util.GetEnvOr("APP_ENV", "development"))

	RootCmd.PersistentFlags().StringVar(&serverURL, "server", util.GetEnvOr("SOS_SERVER", "http://localhost:8080"), "server base URL")
	RootCmd.PersistentFlags().StringVar(&token, "token", util.GetEnv("SOS_TOKEN"), "bearer token (or SOS_TOKEN)")

	RootCmd.AddCommand(newTokenCmd(), newSeedCmd(), newPressCmd(), newRespondCmd())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func requireToken() error {
	if token == "" {
		return fmt.Errorf("a bearer token is required, see `sosctl token`")
	}
	return nil
}
