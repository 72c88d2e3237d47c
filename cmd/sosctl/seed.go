package main

import (
	"fmt"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/internal/store"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var (
		driver string
		dsn    string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write users and trusted contacts into the directory tables",
	}
	cmd.PersistentFlags().StringVar(&driver, "db-driver", util.GetEnvOr("DB_DRIVER", "sqlite"), "sqlite, mysql or pg")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", util.GetEnv("DSN"), "database DSN")

	open := func() (*store.DBDirectory, error) {
		if driver == "sqlite" && dsn == "" {
			return nil, fmt.Errorf("an in-memory database is private to one process, pass --dsn")
		}
		db, err := util.InitDatabase(driver, dsn)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(db); err != nil {
			return nil, err
		}
		return store.NewDBDirectory(db), nil
	}

	var u models.User
	userCmd := &cobra.Command{
		Use:   "user <id>",
		Short: "Create or update a reporting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := open()
			if err != nil {
				return err
			}
			u.ID = args[0]
			if err := dir.SaveUser(cmd.Context(), &u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", u.ID)
			return nil
		},
	}
	userCmd.Flags().StringVar(&u.Name, "name", "", "display name")
	userCmd.Flags().StringVar(&u.Phone, "phone", "", "phone number")
	userCmd.Flags().StringVar(&u.Email, "email", "", "email address")

	var tc models.TrustedContact
	var inactive bool
	contactCmd := &cobra.Command{
		Use:   "contact <owner-user-id>",
		Short: "Create or update a trusted contact of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := open()
			if err != nil {
				return err
			}
			tc.UserID = args[0]
			if tc.ID == "" {
				tc.ID = uuid.NewString()
			}
			tc.Active = !inactive
			if err := dir.SaveContact(cmd.Context(), &tc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "contact %s saved for %s\n", tc.ID, tc.UserID)
			return nil
		},
	}
	contactCmd.Flags().StringVar(&tc.ID, "id", "", "contact id (generated when empty)")
	contactCmd.Flags().StringVar(&tc.Name, "name", "", "display name")
	contactCmd.Flags().StringVar(&tc.Relationship, "relationship", "", "relationship to the user")
	contactCmd.Flags().StringVar(&tc.Phone, "phone", "", "phone number")
	contactCmd.Flags().BoolVar(&inactive, "inactive", false, "store the contact as inactive")

	cmd.AddCommand(userCmd, contactCmd)
	return cmd
}
