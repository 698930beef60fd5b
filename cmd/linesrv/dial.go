package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Zereker/lineproto"
	"github.com/Zereker/lineproto/internal/config"
)

const defaultDialTimeout = 5 * time.Second

func dialCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "dial [address]",
		Short: "Send stdin lines to a server and print each response",
		Long: "Connects to address (host:port, or a ws:// or wss:// URL) and sends\n" +
			"every line read from stdin, printing the response line for each.\n" +
			"Without an address the configured listen address is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := ""
			if len(args) == 1 {
				addr = args[0]
			} else {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				addr = cfg.Server.Listen
			}

			ctx := cmd.Context()
			client, err := connect(ctx, addr, timeout)
			if err != nil {
				return err
			}
			defer client.Close()

			return relay(ctx, client, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", defaultDialTimeout, "connect timeout")

	return cmd
}

func connect(ctx context.Context, addr string, timeout time.Duration) (*lineproto.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return lineproto.DialWebSocket(ctx, addr)
	}
	return lineproto.Dial(ctx, addr)
}

// stdio joins the terminal's input and output into one stream.
type stdio struct {
	io.Reader
	io.Writer
}

// relay frames in with the line codec, calls the server for each line and
// writes the responses to out in the same framing.
func relay(ctx context.Context, client *lineproto.Client, in io.Reader, out io.Writer) error {
	lines := lineproto.NewTransport(stdio{Reader: in, Writer: out}, lineproto.NewLineCodec(0))

	for {
		req, err := lines.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.WithMessage(err, "reading input")
		}

		resp, err := client.Call(ctx, req)
		if err != nil {
			return err
		}

		if err := lines.Send(resp); err != nil {
			return errors.WithMessage(err, "writing output")
		}
	}
}
