package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindsprint/internal/api/http"
	auth "github.com/mind-engage/mindsprint/internal/auth/middleware"
	"github.com/mind-engage/mindsprint/internal/exam"
	"github.com/mind-engage/mindsprint/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the expiry sweeper",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := openApp(openCtx, cfg, lggr)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Engine:      a.engine,
			Catalog:     a.catalog,
			Users:       a.users,
			Importer:    a.importer,
			Blobs:       bs,
			Auth:        auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
			Logger:      lggr,
			CORSOrigins: cfg.CORSOrigins(),
			EnableLogin: cfg.EnableLogin,
			Ready:       a.db.PingContext,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lggr.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return exam.NewSweeper(a.engine, cfg.SweepInterval, lggr).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		lggr.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
