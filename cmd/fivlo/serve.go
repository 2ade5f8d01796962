package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gumwoo/fivlo/internal/app"
	"github.com/gumwoo/fivlo/internal/goalai"
	"github.com/gumwoo/fivlo/internal/notify"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder dispatcher",
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
			defer func() {
				if cerr := store.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			notifiers := notify.Multi{notify.NewLogNotifier(logger)}
			if cfg.Telegram.Token != "" {
				telegram, err := notify.NewTelegramNotifier(cfg.Telegram.Token)
				if err != nil {
					return fmt.Errorf("telegram notifier: %w", err)
				}
				notifiers = append(notifiers, telegram)
			}

			a := app.Build(store, app.Options{
				Location:            cfg.Location(),
				DefaultTimezone:     cfg.Timezone,
				RewardAmount:        cfg.RewardAmount,
				ReminderPremiumOnly: cfg.Reminders.PremiumOnly,
				JWTSecret:           []byte(cfg.JWTSecret),
				TokenTTL:            cfg.TokenTTL,
				Planner:             goalai.NewClient(goalai.ClientConfig{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL}),
				PlannerModel:        cfg.OpenAI.Model,
				Notifier:            notifiers,
				Logger:              logger,
			})

			if err := a.Dispatcher.Start(ctx, cfg.Reminders.Schedule); err != nil {
				return err
			}
			defer a.Dispatcher.Stop()

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           a.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			logger.Info("fivlo API listening", "addr", server.Addr, "driver", cfg.Database.Driver)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}
