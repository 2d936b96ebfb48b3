package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"audiencier/internal/clock"
	"audiencier/internal/config"
	appLog "audiencier/internal/log"
	"audiencier/internal/store"
	"audiencier/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	schedulerActor  = "scheduler"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard, the REST API and the scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.withStore(ctx, func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if listen != "" {
					cfg.Listen = listen
				}
				return serve(ctx, cfg, st)
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}

// serve runs the HTTP server and the cron scheduler until ctx is done,
// then flushes a pending export.
func serve(ctx context.Context, cfg *config.Config, st *store.Store) error {
	clk := clock.Real()
	feed := newFeed(cfg, clk)
	exporter := web.NewExporter(st, cfg.ExportPath, clk, cfg.ExportDebounce())
	srv := web.NewServer(cfg, web.Deps{Store: st, Feed: feed, Exporter: exporter, Clock: clk})

	if err := exporter.WriteFile(ctx); err != nil {
		appLog.Warn("initial ics export failed", "path", cfg.ExportPath, "err", err)
	}

	jobCtx := store.WithActor(ctx, schedulerActor)
	sched := cron.New(cron.WithLocation(cfg.Location()))
	if _, err := sched.AddFunc(cfg.SweepCron, func() {
		n, err := st.SweepUnreported(jobCtx, clk.Now())
		if err != nil {
			appLog.Error("sweep failed", err)
			return
		}
		if n > 0 {
			appLog.Info("unreported hearings marked", "count", n)
			srv.Invalidate()
			exporter.Notify("sweep")
		}
	}); err != nil {
		return err
	}
	if feed != nil {
		if _, err := sched.AddFunc(cfg.RefreshCron, func() {
			if err := feed.Refresh(jobCtx); err != nil {
				appLog.Warn("ics refresh incomplete", "err", err)
			}
			srv.Invalidate()
		}); err != nil {
			return err
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("http server listening", "addr", cfg.Listen, "database", st.Path(), "version", version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		<-sched.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	if feed != nil {
		g.Go(func() error {
			if err := feed.Refresh(gctx); err != nil {
				appLog.Warn("initial ics refresh incomplete", "err", err)
			}
			srv.Invalidate()
			return nil
		})
	}

	err := g.Wait()
	if exporter.Flush() {
		appLog.Info("pending ics export flushed")
	}
	exporter.Stop()
	return err
}
