package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fjod/go_pickup/internal/config"
	"github.com/fjod/go_pickup/internal/domain"
	"github.com/fjod/go_pickup/internal/scanner"
	"github.com/fjod/go_pickup/internal/telemetry"
)

func main() {
	telemetry.InitLogger(os.Stderr, "scanner")

	cfg, err := config.LoadScanner()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := scanner.New(
		scanner.NewFileSource(cfg.SnapshotPath),
		scanner.NewQRDecoder(),
		scanner.NewHTTPVerifier(cfg.VerifyURL),
		scanner.WithCooldown(cfg.Cooldown),
		scanner.WithVerifyTimeout(cfg.Timeout),
		scanner.WithReport(report),
	)

	// Typed tokens go straight to verify.
	go func() {
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			token := strings.TrimSpace(in.Text())
			if token == "" {
				continue
			}
			_, _ = loop.Submit(ctx, token)
		}
	}()

	ticker := time.NewTicker(cfg.FrameInterval)
	defer ticker.Stop()

	slog.Info("scanning", "snapshot", cfg.SnapshotPath, "verify_url", cfg.VerifyURL)
	if err := loop.Run(ctx, ticker.C); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scan loop failed", "error", err)
		os.Exit(1)
	}
	slog.Info("scanner stopped", "state", loop.State().String())
}

func report(a scanner.Attempt) {
	switch {
	case a.Outcome.Redeemed(a.Err):
		fmt.Printf("OK    order %s picked up at %s\n", a.Outcome.OrderID, pickedUpAt(a.Outcome))
	case errors.Is(a.Err, domain.ErrAlreadyFinalized) && a.Outcome.PickupTime != nil:
		fmt.Printf("USED  order %s already picked up at %s\n", a.Outcome.OrderID, pickedUpAt(a.Outcome))
	case errors.Is(a.Err, domain.ErrAlreadyFinalized):
		fmt.Printf("USED  order %s is %s\n", a.Outcome.OrderID, a.Outcome.Status)
	case errors.Is(a.Err, domain.ErrExpired):
		fmt.Printf("LATE  order %s pickup window closed (%s)\n", a.Outcome.OrderID, a.Outcome.Status)
	case errors.Is(a.Err, domain.ErrNotFound):
		fmt.Println("??    unknown code")
	default:
		fmt.Printf("ERR   %v, try again\n", a.Err)
	}
}

func pickedUpAt(o scanner.Outcome) string {
	if o.PickupTime == nil {
		return "unknown time"
	}
	return o.PickupTime.Local().Format(time.Kitchen)
}
