// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/sanctions-engine/internal/auth"
	"github.com/pdiddy/sanctions-engine/internal/scheduler"
	"github.com/pdiddy/sanctions-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web application",
	Long: `Serve starts the web application: login, dashboard, PDF and batch
processing, the OFAC and UN list pages, downloads, the JSON API under
/api/v1 and Prometheus metrics on /metrics. When the scheduler is enabled
the OFAC and UN lists are refreshed on its cron schedule.

The server stops on SIGINT or SIGTERM after draining open requests.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		viper.Set("server.addr", v)
	}
	if cmd.Flags().Changed("schedule") {
		v, _ := cmd.Flags().GetBool("schedule")
		viper.Set("scheduler.enabled", v)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	authn, err := auth.New(a.cfg.Auth)
	if err != nil {
		return err
	}
	if a.cfg.Auth.SigningKey == "" {
		logger.Warn("no session signing key configured; sessions end when the server restarts")
	}

	srv, err := server.New(a.cfg.Server, a.svc, authn, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })

	if a.cfg.Scheduler.Enabled {
		sched, err := scheduler.New(a.cfg.Scheduler, a.svc, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(ctx) })
	}

	return g.Wait()
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Bool("schedule", false, "refresh the OFAC and UN lists on the configured cron schedule")

	rootCmd.AddCommand(serveCmd)
}
