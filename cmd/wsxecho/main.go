// Command wsxecho mounts a wsx.Server on an http.ServeMux and echoes every message it
// receives on the root path (topic "message") back to the sender, logging
// opens/closes/errors. Connections on other paths are accepted but not echoed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jadsonlucena/wsx"
)

func main() {
	addr := flag.String("addr", "localhost:6970", "listen address")
	flag.Parse()

	logger := slog.Default()

	cfg := wsx.DefaultConfig()
	cfg.Logger = logger
	srv := wsx.NewServer(cfg)

	srv.OnOpen(func(id string) {
		logger.Info("client opened", slog.String("client_id", id))
	})
	srv.OnClose(func(id string, err *wsx.CloseError) {
		logger.Info("client closed", slog.String("client_id", id), slog.Int("code", int(err.Code)), slog.String("message", err.Message))
	})
	srv.OnError(func(id string, err error) {
		logger.Error("client error", slog.String("client_id", id), slog.Any("error", err))
	})
	srv.On("message", func(id string, payload []byte) {
		if err := srv.Send(id, payload, true); err != nil {
			logger.Error("echo failed", slog.String("client_id", id), slog.Any("error", err))
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info("listening", slog.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	srv.Shutdown()
	_ = httpSrv.Shutdown(context.Background())
}
