package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/bnema/gh-commands-gateway/internal/adapters/httpapi"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the multi-tenant command gateway service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)

			if listenAddr == "" {
				listenAddr = app.listenAddr
			}

			server := &http.Server{
				Addr:              listenAddr,
				Handler:           httpapi.NewServer(app.registry, app.gateway, app.clock).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}

			go app.runSweeper(ctx)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("gateway listening", "addr", listenAddr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown incomplete", "err", err)
			}
			app.registry.Close(shutdownCtx)
			logger.Info("gateway stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default GHG_LISTEN or 127.0.0.1:3000)")

	return cmd
}

// runSweeper evicts expired and idle sessions on a fixed cadence until
// the serve context ends.
func (a *app) runSweeper(ctx context.Context) {
	interval := a.sweepInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.registry.Sweep(ctx, a.clock.Now())
		}
	}
}
