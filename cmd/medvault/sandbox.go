package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/sandbox"
)

func sandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "In-memory MedVault backend for demos and tests",
	}

	var port string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.SandboxPort
			}
			srv, err := sandbox.NewServer(a.cfg, a.logger)
			if err != nil {
				return err
			}
			seeded := srv.Seeded()
			a.logger.Info().
				Int("doctors", seeded.Doctors).
				Int("patients", seeded.Patients).
				Int("slots", seeded.Slots).
				Int("appointments", seeded.Appointments).
				Str("admin", sandbox.AdminEmail).
				Msg("sandbox seeded")

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(":" + port) }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			a.logger.Info().Msg("shutting down sandbox")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			a.logger.Info().Msg("sandbox stopped")
			return nil
		},
	}
	serve.Flags().StringVar(&port, "port", "", "Listen port, defaults to SANDBOX_PORT")

	cmd.AddCommand(serve)
	return cmd
}
