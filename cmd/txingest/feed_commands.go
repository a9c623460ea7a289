package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/brojonat/txingest/service/feed"
	"github.com/brojonat/txingest/service/solana"
)

// tailCommand subscribes to the live update feed and prints classified
// updates without persisting anything. Useful for verifying filters and
// connectivity before running the daemon.
func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Tail the live update feed",
		Description: `Subscribe to the transaction feed and print each update as it arrives.

Example:
  txingest feed tail --accounts DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "x-token",
				Usage:   "Feed access token",
				EnvVars: []string{"FEED_X_TOKEN"},
			},
			&cli.StringSliceFlag{
				Name:    "accounts",
				Aliases: []string{"a"},
				Usage:   "Filter included account in transactions (repeatable)",
			},
			&cli.StringFlag{
				Name:  "commitment",
				Usage: "Commitment level: processed, confirmed or finalized",
				Value: "finalized",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			commitment, err := feed.ParseCommitment(c.String("commitment"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout := c.Duration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			client, err := feed.Dial(c.String("feed-url"), c.String("x-token"), logger)
			if err != nil {
				return err
			}
			defer client.Close()

			_, stream, err := client.Subscribe(ctx, &feed.SubscribeRequest{
				Accounts:   c.StringSlice("accounts"),
				Commitment: commitment,
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "tailing feed (accounts=%v, commitment=%s), Ctrl-C to stop\n",
					c.StringSlice("accounts"), commitment)
			}

			for {
				u, err := stream.Recv(ctx)
				if errors.Is(err, io.EOF) {
					fmt.Fprintln(os.Stderr, "stream closed by server")
					return nil
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				if err != nil {
					return err
				}
				printUpdate(u, jsonOutput)
			}
		},
	}
}

func printUpdate(u *feed.Update, jsonOutput bool) {
	switch u.Kind {
	case feed.KindTransaction:
		rec, err := solana.DecodeRecord(u.Transaction, u.CreatedAt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "malformed transaction update: %v\n", err)
			return
		}
		if jsonOutput {
			outputJSON(map[string]any{
				"kind":       u.Kind.String(),
				"filters":    u.Filters,
				"txn_hash":   rec.TxnHash,
				"signer":     rec.Signer,
				"fee":        rec.Fee,
				"unix_epoch": rec.ObservedAt.Unix(),
			})
			return
		}
		fmt.Printf("%s (%s) at %s: hash=%s signer=%s fee=%d\n",
			u.Kind,
			strings.Join(u.Filters, ","),
			u.CreatedAt.UTC().Format(time.RFC3339Nano),
			rec.TxnHash,
			rec.Signer,
			rec.Fee,
		)
	default:
		if jsonOutput {
			outputJSON(map[string]any{"kind": u.Kind.String()})
			return
		}
		fmt.Printf("%s at %s\n", u.Kind, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
}
