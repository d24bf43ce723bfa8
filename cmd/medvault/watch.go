package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/collection"
	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/refresh"
	"github.com/medvault/medvault/pkg/pagination"
)

func watchCmd(a *app) *cobra.Command {
	var (
		schedule string
		live     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll appointments and print status changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, done, err := a.tab(cmd, "", dashboard.TabAppointments)
			if err != nil {
				return err
			}
			defer done()
			if schedule == "" {
				schedule = a.cfg.WatchSchedule
			}
			role := c.Session().Role()
			store := collection.New(appointmentFetcher(role, c, collection.Query{}), collection.AppointmentFields, pagination.CardSize)

			w, err := refresh.New(store, schedule, func(ch refresh.Change) {
				switch {
				case ch.From == "":
					a.printf("appointment %d: new, %s\n", ch.ID, ch.To)
				case ch.To == "":
					a.printf("appointment %d: removed\n", ch.ID)
				default:
					a.printf("appointment %d: %s -> %s\n", ch.ID, ch.From, ch.To)
				}
			}, a.logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
			a.printf("Watching %d appointments (%s), Ctrl-C to stop\n", store.Len(), schedule)

			if live {
				// Each pushed event triggers a full reload; the cron schedule
				// keeps running as the fallback.
				err := c.WatchAppointments(ctx, func(ev scheduling.StatusEvent) {
					a.logger.Debug().Int64("appointment_id", ev.AppointmentID).Str("to", string(ev.To)).Msg("appointment event")
					if _, err := w.Poll(ctx); err != nil {
						a.logger.Warn().Err(err).Msg("reload after event")
					}
				})
				if err != nil {
					a.logger.Warn().Err(err).Msg("live updates unavailable, polling only")
				}
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, defaults to WATCH_SCHEDULE")
	cmd.Flags().BoolVar(&live, "live", false, "Also reload on events pushed by the backend")
	return cmd
}

