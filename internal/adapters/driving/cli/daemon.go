package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/logger"
	"github.com/custodia-labs/sercha-ingest/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled syncs in the foreground",
	Long: `Runs the scheduler until interrupted. Every active source is synchronised
on the configured interval and syncs abandoned by a crashed process are reset.

Prometheus metrics are served on metrics.addr at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server: %v", err)
			}
		}()
		cmd.Printf("Serving metrics on http://%s/metrics\n", ln.Addr())
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	err := scheduler.Start(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("metrics server shutdown: %v", serr)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	cmd.Println("Scheduler stopped.")
	return nil
}
