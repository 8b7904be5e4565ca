package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/pkg/messaging"
)

func eventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published domain events",
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print events as the worker publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, _ := cmd.Flags().GetStringSlice("type")

			broker, err := a.openBroker()
			if err != nil {
				return err
			}
			defer broker.Close()

			show := func(_ context.Context, env messaging.Envelope) error {
				fmt.Printf("%s %-28s %s %s\n",
					env.OccurredAt.Format("15:04:05"), env.Type, env.AggregateID, env.Payload)
				return nil
			}
			onError := func(err error) { a.log.Error(err, "Skipping event") }

			g, ctx := errgroup.WithContext(cmd.Context())
			for _, t := range types {
				channel := t
				g.Go(func() error {
					return messaging.Consume(ctx, broker, channel, show, onError)
				})
			}
			return g.Wait()
		},
	}
	watchCmd.Flags().StringSlice("type", []string{
		model.EventAppointmentStatusChanged,
		model.EventInventoryStatusChanged,
	}, "Event types to follow")
	cmd.AddCommand(watchCmd)

	return cmd
}
