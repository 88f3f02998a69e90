// streamtest subscribes one reconnecting market stream and prints
// decoded events to the console. It needs no config file or database.
//
// Usage:
//
//	go run ./cmd/streamtest -tokens 1234,5678 -duration 1m -verbose
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/polymarket-data/internal/ws"
)

func main() {
	url := flag.String("url", ws.DefaultMarketURL, "market feed websocket URL")
	tokens := flag.String("tokens", "", "comma-separated token IDs to subscribe (required)")
	duration := flag.Duration("duration", 0, "stop after this long (0 = run until Ctrl+C)")
	maxAttempts := flag.Int("max-attempts", 0, "reconnect attempt budget (0 = unlimited)")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	assetIDs := splitTokens(*tokens)
	if len(assetIDs) == 0 {
		fmt.Fprintln(os.Stderr, "streamtest: -tokens is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	client := ws.NewMarketClient(
		ws.WithURL(*url),
		ws.WithLogger(logger),
	)

	reconnect := ws.DefaultReconnectConfig()
	reconnect.MaxAttempts = *maxAttempts

	stream := client.Stream(reconnect, assetIDs)
	defer stream.Close()

	logger.Info("streaming started",
		"url", *url,
		"tokens", len(assetIDs),
		"max_attempts", *maxAttempts,
	)

	var books, changes, decodeErrs, drops int
	start := time.Now()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ws.ErrStreamEnded) {
				break
			}

			var de *ws.DecodeError
			var fe *ws.UnsupportedFrameError
			if errors.As(err, &de) || errors.As(err, &fe) {
				decodeErrs++
				logger.Debug("undecodable message", "error", err)
				continue
			}

			// Session-ending; the stream reconnects underneath.
			drops++
			logger.Warn("session dropped", "error", err, "state", stream.State().String())
			continue
		}

		switch e := ev.(type) {
		case *ws.BookEvent:
			books++
			if *verbose {
				printJSON("BOOK", e)
			} else {
				fmt.Printf("[BOOK] asset=%s bids=%d asks=%d hash=%s\n",
					e.AssetID, len(e.Bids), len(e.Asks), e.Hash)
			}
		case *ws.PriceChangeEvent:
			changes++
			if *verbose {
				printJSON("PRICE_CHANGE", e)
			} else {
				fmt.Printf("[PRICE_CHANGE] market=%s changes=%d\n",
					e.Market, len(e.PriceChanges))
			}
		}
	}

	logger.Info("streaming finished",
		"elapsed", time.Since(start).Round(time.Second),
		"books", books,
		"price_changes", changes,
		"decode_errors", decodeErrs,
		"session_drops", drops,
		"final_state", stream.State().String(),
	)
}

func splitTokens(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(tag string, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("[%s] %s\n", tag, data)
}
