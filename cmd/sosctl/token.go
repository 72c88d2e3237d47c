package main

import (
	"fmt"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/auth"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		secret string
		role   string
		name   string
		owner  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Sign a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			tok, err := auth.NewIssuer(secret, ttl).Issue(args[0], role, name, owner)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", util.GetEnv("JWT_SECRET"), "signing secret")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "user or contact")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&owner, "owner", "", "owning user id, required for contacts")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
