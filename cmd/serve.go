package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/api"
	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/monitoring"
)

var (
	servePort       int
	serveSessionTTL time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP review server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		images, err := initImages(ctx, cfg)
		if err != nil {
			return err
		}

		sessions := api.NewSessionManager(st, initMatcher(cfg, st), cfg.ReviewOptions(), serveSessionTTL)
		go sessions.Run(ctx, time.Minute)

		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		srv := api.NewServer(api.Config{
			Sessions:         sessions,
			Cards:            st,
			Ingester:         ingest.New(st),
			Images:           images,
			CORSOrigins:      cfg.Server.CORSOrigins,
			IngestRatePerMin: cfg.Server.IngestRatePerMin,
			Pinger:           st,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveSessionTTL, "session-ttl", 30*time.Minute, "close review sessions idle for this long")
	rootCmd.AddCommand(serveCmd)
}
