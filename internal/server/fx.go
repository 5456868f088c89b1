package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/veritasweb/payments/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(
		NewEngine,
		NewServer,
	),
	fx.Invoke(runHTTP),
)

// runHTTP binds the listener under the fx lifecycle so shutdown drains
// in-flight requests.
func runHTTP(lc fx.Lifecycle, cfg config.Config, srv *Server, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("http server shutting down")
			return httpServer.Shutdown(ctx)
		},
	})
}
