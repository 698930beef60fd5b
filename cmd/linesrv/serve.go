package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/lineproto"
	"github.com/Zereker/lineproto/internal/config"
)

func serveCmd() *cobra.Command {
	var listen, wsListen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the echo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if wsListen != "" {
				cfg.Server.WebSocketListen = wsListen
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log, verbosity)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "TCP listen address (overrides config)")
	cmd.Flags().StringVar(&wsListen, "ws-listen", "", "WebSocket listen address (overrides config)")

	return cmd
}

// connOptions maps the connection section of cfg onto pipeline options.
func connOptions(cfg *config.Config, logger *slog.Logger) []lineproto.Option {
	return []lineproto.Option{
		lineproto.LoggerOption(logger),
		lineproto.MessageMaxSize(cfg.Connection.MaxFrameSize),
		lineproto.ReadBufferSizeOption(cfg.Connection.ReadBufferSize),
		lineproto.IdleTimeoutOption(cfg.Connection.IdleTimeout.Duration),
	}
}

// serve runs the TCP server and, when configured, the WebSocket listener
// until ctx is canceled or either of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	server, err := lineproto.New(cfg.Server.Listen,
		lineproto.ServerLoggerOption(logger),
		lineproto.ServerShutdownTimeoutOption(cfg.Server.ShutdownTimeout.Duration),
		lineproto.ServerMaxConnectionsOption(cfg.Server.MaxConnections),
		lineproto.ServerReusePortOption(cfg.Server.ReusePort),
	)
	if err != nil {
		return err
	}

	handler := lineproto.NewServiceHandler(lineproto.NewEcho, connOptions(cfg, logger)...)
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := server.Serve(gctx, handler)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Server.WebSocketListen != "" {
		mux := http.NewServeMux()
		mux.Handle(cfg.Server.WebSocketPath, lineproto.WebSocketHandler(handler,
			lineproto.WebSocketOriginsOption(cfg.Server.WebSocketOrigins...),
			lineproto.WebSocketLoggerOption(logger),
		))

		hs := &http.Server{
			Addr:              cfg.Server.WebSocketListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return gctx
			},
		}

		group.Go(func() error {
			logger.Info("websocket listener started", "addr", hs.Addr, "path", cfg.Server.WebSocketPath)
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "websocket listener")
			}
			return nil
		})

		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
			defer cancel()
			if err := hs.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return errors.Wrap(err, "websocket shutdown")
			}
			return nil
		})
	}

	return group.Wait()
}
