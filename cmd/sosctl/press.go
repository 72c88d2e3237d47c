package main

import (
	"context"
	"fmt"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/client"
	"github.com/spf13/cobra"
)

func newPressCmd() *cobra.Command {
	var (
		count     int
		interval  time.Duration
		countdown time.Duration
		location  string
		message   string
		cancelAt  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "press",
		Short: "Simulate presses of the emergency button",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			confirmed := make(chan string, 1)
			p := client.NewPressController(client.NewAPI(serverURL, token),
				client.WithCountdown(countdown),
				client.WithMessage(message),
				client.WithHooks(client.Hooks{
					CountdownStarted: func(id string, d time.Duration) {
						fmt.Fprintf(out, "alert %s created, sending in %s (ctrl-c to abort)\n", id, d)
					},
					Confirmed: func(id string) { confirmed <- id },
					Urgency: func(n int, level models.AlertLevel) {
						fmt.Fprintf(out, "press %d, level %s\n", n, level)
					},
					Cancelled: func(id string) { fmt.Fprintf(out, "alert %s cancelled\n", id) },
				}))

			ctx := cmd.Context()
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				if _, err := p.Press(ctx, location); err != nil {
					fmt.Fprintf(out, "press %d: %v\n", i+1, err)
				}
			}
			if p.State().AlertID == "" {
				return fmt.Errorf("no alert was raised")
			}

			var abort <-chan time.Time
			if cancelAt > 0 {
				abort = time.After(cancelAt)
			}
			select {
			case id := <-confirmed:
				fmt.Fprintf(out, "alert %s sent\n", id)
				return nil
			case <-abort:
				return p.Cancel(context.WithoutCancel(ctx))
			case <-ctx.Done():
				return p.Cancel(context.WithoutCancel(ctx))
			}
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of presses")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "gap between presses")
	cmd.Flags().DurationVar(&countdown, "countdown", client.DefaultCountdown, "cancel window after the first press")
	cmd.Flags().StringVar(&location, "location", "", "location string sent with each press")
	cmd.Flags().StringVar(&message, "message", "Emergency! I need help.", "alert message")
	cmd.Flags().DurationVar(&cancelAt, "cancel-after", 0, "cancel this long after the last press")
	return cmd
}
