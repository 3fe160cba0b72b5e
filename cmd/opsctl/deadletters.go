package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/deadletter"
	"github.com/Chidera001-dev/e-commerce-system/internal/publisher"
	"github.com/spf13/cobra"
)

func deadLettersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dlq"},
		Short:   "Inspect and replay fulfillment tasks that exhausted their retries",
	}
	cmd.AddCommand(deadLettersListCmd(a))
	cmd.AddCommand(deadLettersReplayCmd(a))
	return cmd
}

func (a *app) openDeadLetters(ctx context.Context) (*deadletter.MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := deadletter.ConnectMongoDB(connectCtx, a.cfg.MongoURI, a.cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	return deadletter.NewMongoStore(db), nil
}

func deadLettersListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			limit, _ := cmd.Flags().GetInt64("limit")

			store, err := a.openDeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			letters, err := store.List(cmd.Context(), !all, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tORDER\tATTEMPTS\tPERMANENT\tFAILED AT\tREPLAYED\tERROR")
			for _, dl := range letters {
				replayed := "-"
				if dl.ReplayedAt != nil {
					replayed = dl.ReplayedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%t\t%s\t%s\t%s\n",
					dl.ID, dl.OrderID, dl.Attempts, dl.Permanent,
					dl.FailedAt.Format(time.RFC3339), replayed, dl.LastError)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("all", false, "include tasks that were already replayed")
	cmd.Flags().Int64P("limit", "n", 50, "maximum number of tasks to show")
	return cmd
}

func deadLettersReplayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [id...]",
		Short: "Put dead-lettered tasks back on the fulfillment topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openDeadLetters(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			writer := publisher.NewWriter(a.cfg.KafkaBrokers, a.cfg.FulfillmentTopic)
			defer writer.Close()

			for _, id := range args {
				dl, err := publisher.Replay(cmd.Context(), store, writer, id)
				if err != nil {
					return fmt.Errorf("replay %s: %w", id, err)
				}
				a.log.Info("dead letter replayed", "id", dl.ID, "order_id", dl.OrderID)
				fmt.Fprintf(cmd.OutOrStdout(), "replayed %s (order %d)\n", dl.ID, dl.OrderID)
			}
			return nil
		},
	}
}
