package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/berniyo/paypack-portal/internal/paypack"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Show the latest known status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}

			view, err := client.PaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
}

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List recent transactions from the events feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			if page < 1 {
				page = 1
			}
			if limit < 1 || limit > 100 {
				return fmt.Errorf("limit must be between 1 and 100")
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}

			result, err := client.ListPayments(cmd.Context(), paypack.ListParams{
				Limit:  limit,
				Offset: (page - 1) * limit,
				Status: status,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Payments) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			fmt.Fprintf(out, "%-24s %-12s %10s  %-20s %s\n", "ID", "STATUS", "AMOUNT", "CREATED", "PHONE")
			fmt.Fprintln(out, strings.Repeat("-", 84))
			for _, p := range result.Payments {
				fmt.Fprintf(out, "%-24s %-12s %10.0f  %-20s %s\n",
					p.ID, p.Status, p.Amount, p.CreatedAt.Format(time.DateTime), p.CustomerPhone)
			}
			fmt.Fprintf(out, "\npage %d, %d of %d\n", page, len(result.Payments), result.Total)
			return nil
		},
	}

	cmd.Flags().IntP("page", "p", 1, "Page number")
	cmd.Flags().IntP("limit", "n", 10, "Results per page (max 100)")
	cmd.Flags().StringP("status", "s", "", "Filter by status")

	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [transaction-id]",
		Short: "Cancel a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}

			view, err := client.CancelPayment(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cancel failed: %w", err)
			}
			return printJSON(cmd, view)
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Authorize against Paypack and show the cached credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}

			tokens := client.Tokens()
			if _, err := tokens.ValidAccessToken(cmd.Context()); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			info := tokens.TokenInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Access token:  %s\n", mask(info.AccessToken))
			fmt.Fprintf(out, "Refresh token: %s\n", mask(info.RefreshToken))
			fmt.Fprintf(out, "Expires at:    %s (in %s)\n",
				info.ExpiresAt.Format(time.RFC3339), time.Until(info.ExpiresAt).Round(time.Second))
			return nil
		},
	}
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}
