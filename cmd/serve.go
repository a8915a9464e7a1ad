package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ledger-backend/controllers"
	"ledger-backend/database"
	"ledger-backend/logger"
	"ledger-backend/renderer"
	"ledger-backend/routes"
	"ledger-backend/utils"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the overdue sweeper",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap("server")
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if err := database.Migrate(rt.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	pdf := renderer.New(rt.cfg.RendererURL, rt.cfg.RendererTimeout, logger.WithComponent("renderer"))
	app := routes.NewApp(
		controllers.New(rt.ledger, pdf),
		routes.Deps{DB: rt.db, JWTSecret: []byte(rt.cfg.JWTSecret), Logger: logger.WithComponent("http")},
		routes.AppConfig{
			BodyLimitBytes:  rt.cfg.BodyLimitBytes,
			AllowedOrigins:  rt.cfg.AllowedOrigins,
			RateLimitMax:    rt.cfg.RateLimitMax,
			RateLimitWindow: rt.cfg.RateLimitWindow,
			RequestTimeout:  rt.cfg.RequestTimeout,
		},
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rt.log.Info().Str("port", rt.cfg.Port).Bool("pdf", pdf.Enabled()).Msg("listening")
		if err := app.Listen(":" + rt.cfg.Port); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rt.log.Info().Msg("shutting down")
		return app.ShutdownWithContext(shutdownCtx)
	})
	if every := rt.cfg.OverdueSweepInterval; every > 0 {
		g.Go(func() error {
			sweepOverdue(gctx, rt, every)
			return nil
		})
	}

	return g.Wait()
}

// sweepOverdue marks overdue invoices for every tenant on each tick until ctx ends.
func sweepOverdue(ctx context.Context, rt *runtime, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		asOf := utils.DateOf(time.Now().In(rt.cfg.Location()))
		if _, err := rt.ledger.Invoices.MarkOverdue(ctx, "", asOf); err != nil && ctx.Err() == nil {
			rt.log.Warn().Err(err).Msg("overdue sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
