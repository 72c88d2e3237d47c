package main

import (
	"fmt"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/client"
	"github.com/spf13/cobra"
)

func newRespondCmd() *cobra.Command {
	var (
		status string
		note   string
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "respond [alert-id]",
		Short: "Update an alert's status as a trusted contact",
		Long: `With an alert id, sends one status update. With --watch, listens on the
real-time channel and answers every new alert with the given status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			target := models.AlertStatus(status)
			updater := client.NewStatusUpdater(client.NewAPI(serverURL, token),
				client.WithRefresh(func(a *models.Alert) {
					fmt.Fprintf(out, "alert %s is %s (%d responses)\n", a.ID, a.Status, len(a.ResponseLog))
				}))

			if len(args) == 1 {
				_, err := updater.Update(ctx, args[0], target, note)
				return err
			}
			if !watch {
				return fmt.Errorf("pass an alert id or --watch")
			}

			fmt.Fprintln(out, "waiting for alerts")
			return client.NewSubscriber(serverURL, token).Run(ctx, func(ev client.Event) {
				switch ev.Type {
				case models.EventNewAlert:
					na, err := ev.NewAlert()
					if err != nil {
						return
					}
					fmt.Fprintf(out, "new alert %s from %s at %s: %s\n", na.AlertID, na.ReporterName, na.Location, na.Message)
					if _, err := updater.Update(ctx, na.AlertID, target, note); err != nil {
						fmt.Fprintf(out, "respond to %s: %v\n", na.AlertID, err)
					}
				case models.EventStatusUpdate:
					su, err := ev.StatusUpdate()
					if err != nil || !updater.ShouldRefresh(su) {
						return
					}
					fmt.Fprintf(out, "alert %s moved to %s by %s\n", su.AlertID, su.Status, su.ActorName)
				}
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.StatusContacted), "contacted or resolved")
	cmd.Flags().StringVar(&note, "note", "", "note attached to the response")
	cmd.Flags().BoolVar(&watch, "watch", false, "answer new alerts as they arrive")
	return cmd
}
