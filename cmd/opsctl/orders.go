package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/orders"
	"github.com/spf13/cobra"
)

func ordersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Move orders through shipping, delivery and cancellation",
	}
	cmd.AddCommand(orderTransitionCmd(a, "ship", "Mark a paid order as shipped", (*orders.Service).MarkShipped))
	cmd.AddCommand(orderTransitionCmd(a, "deliver", "Mark a shipped order as delivered", (*orders.Service).MarkDelivered))
	cmd.AddCommand(orderTransitionCmd(a, "cancel", "Cancel an order and return its stock", (*orders.Service).Cancel))
	return cmd
}

type transition func(s *orders.Service, ctx context.Context, orderID int64) (*domain.Order, error)

func orderTransitionCmd(a *app, use, short string, apply transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [order-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || orderID <= 0 {
				return fmt.Errorf("invalid order id %q", args[0])
			}

			repo, err := a.openRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			order, err := apply(orders.NewService(repo, a.log), cmd.Context(), orderID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %d is now %s (payment %s)\n", order.ID, order.Status, order.PaymentStatus)
			return nil
		},
	}
}
