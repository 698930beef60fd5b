package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Zereker/lineproto"
)

// counter is a connection-scoped service: each connection numbers its own lines.
type counter struct {
	n int
}

func (c *counter) Handle(_ context.Context, req lineproto.Message) (lineproto.Message, error) {
	if strings.TrimSpace(string(req)) == "fail" {
		return "", fmt.Errorf("refusing line %d", c.n+1)
	}
	c.n++
	return lineproto.Message(fmt.Sprintf("%d: %s", c.n, req)), nil
}

func main() {
	server, err := lineproto.New("127.0.0.1:12345")
	if err != nil {
		slog.Error("failed to create server", "error", err)
		return
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := lineproto.NewServiceHandler(
		func() lineproto.Service { return &counter{} },
		// Answer failed requests with an error line instead of dropping the connection.
		lineproto.OnServiceErrorOption(func(err error) (lineproto.Message, lineproto.ErrorAction) {
			return lineproto.Message("ERR " + err.Error()), lineproto.Continue
		}),
	)

	slog.Info("server start", "addr", server.Addr().String())
	if err := server.Serve(ctx, handler); err != nil && err != context.Canceled {
		slog.Error("server error", "error", err)
	}
}
