package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gumwoo/fivlo/internal/application"
)

// errDrift is returned when the cached balance disagrees with the ledger.
var errDrift = errors.New("balance drift detected")

func ledgerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the coin ledger",
	}
	cmd.AddCommand(reconcileCmd(opts))
	return cmd
}

func reconcileCmd(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare a user's cached balance with the ledger sum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr())

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			wallet := application.NewWalletServiceWithLogger(store.Users(), store.Ledger(), nil, nil, nil, logger)
			rec, err := wallet.Reconcile(ctx, strings.TrimSpace(userID))
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", userID, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "user %s: cached balance %d, ledger sum %d\n", rec.UserID, rec.CachedBalance, rec.LedgerSum)
			if !rec.Consistent() {
				return fmt.Errorf("%w for user %s", errDrift, rec.UserID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to reconcile")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
