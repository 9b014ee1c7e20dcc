package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/berniyo/paypack-portal/internal/payment"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/internal/poller"
)

var errAborted = errors.New("cashout aborted")

func cashInCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashin [phone] [amount]",
		Short: "Request a mobile-money deposit from a payer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := payment.ParseAmount(args[1])
			if err != nil {
				return err
			}

			client, cfg, err := newClient()
			if err != nil {
				return err
			}

			svc := payment.NewService(client)
			initiated, err := svc.CashIn(cmd.Context(), payment.CashInRequest{Amount: amount, Phone: args[0]})
			if err != nil {
				return fmt.Errorf("cashin failed: %w", err)
			}
			if err := printJSON(cmd, initiated); err != nil {
				return err
			}

			if wait, _ := cmd.Flags().GetBool("wait"); wait {
				return waitFor(cmd, client, cfg.Poll, initiated.TransactionID)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("wait", "w", false, "Poll the transaction until it settles")

	return cmd
}

func cashOutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashout [phone] [amount]",
		Short: "Send a withdrawal to a payer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := payment.ParseAmount(args[1])
			if err != nil {
				return err
			}
			method, _ := cmd.Flags().GetString("method")

			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				prompt := promptui.Select{
					Label: fmt.Sprintf("Send %s RWF to %s via %s?", args[1], args[0], method),
					Items: []string{"Yes", "No"},
				}
				_, result, err := prompt.Run()
				if err != nil {
					return fmt.Errorf("prompt failed: %w", err)
				}
				if result != "Yes" {
					return errAborted
				}
			}

			client, cfg, err := newClient()
			if err != nil {
				return err
			}

			svc := payment.NewService(client)
			initiated, err := svc.CashOut(cmd.Context(), payment.CashOutRequest{Amount: amount, Phone: args[0], Method: method})
			if err != nil {
				return fmt.Errorf("cashout failed: %w", err)
			}
			if err := printJSON(cmd, initiated); err != nil {
				return err
			}

			if wait, _ := cmd.Flags().GetBool("wait"); wait {
				return waitFor(cmd, client, cfg.Poll, initiated.TransactionID)
			}
			return nil
		},
	}

	cmd.Flags().StringP("method", "m", payment.MethodMobileMoney, "Withdrawal method (mobile_money, bank_transfer)")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolP("wait", "w", false, "Poll the transaction until it settles")

	return cmd
}

// waitFor polls ref and prints each progress message, mirroring what the
// payment page shows a payer.
func waitFor(cmd *cobra.Command, client *paypack.Client, th poller.Thresholds, ref string) error {
	out := cmd.OutOrStdout()
	p := poller.New(poller.FetchFromPaypack(client),
		poller.WithThresholds(th),
		poller.WithObserver(func(s poller.Snapshot) {
			fmt.Fprintf(out, "[%3ds] %-9s %s\n", s.Seconds, s.Status, s.Message)
		}),
	)

	snap, err := p.Run(cmd.Context(), ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "final status: %s\n", snap.Status)
	if snap.TryAgain {
		fmt.Fprintln(out, "the payment can be retried")
	}
	return nil
}
