package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quire/internal/handlers"
	"quire/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the content API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if a.cfg.Scheduler.Enabled {
			scheduler := tasks.NewScheduler(a.cfg.Scheduler.Spec, a.sites, a.schemas, a.content, a.items, a.log)
			if err := scheduler.Start(); err != nil {
				return err
			}
			defer scheduler.Stop()
		}

		gin.SetMode(gin.ReleaseMode)
		srv := &http.Server{
			Addr:              a.cfg.HTTP.ListenAddr,
			Handler:           handlers.NewRouter(a.services(), a.log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		a.log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
