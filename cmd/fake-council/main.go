// ABOUTME: Fake council server for local and E2E runs of the council client
// ABOUTME: Usage: fake-council [-addr localhost:8000] [-delay 300ms] [-iterations 2] [-fail]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/2389/council/internal/devserver"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "HTTP listen address")
	delay := flag.Duration("delay", 300*time.Millisecond, "Delay before each streamed record")
	iterations := flag.Int("iterations", 1, "Solver/reviewer iterations per conversation")
	fail := flag.Bool("fail", false, "End without a verified solution")
	flag.Parse()

	if err := run(*addr, *delay, *iterations, !*fail); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, delay time.Duration, iterations int, solved bool) error {
	if iterations < 1 || iterations > devserver.DefaultMaxIterations {
		return fmt.Errorf("iterations must be between 1 and %d", devserver.DefaultMaxIterations)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv := devserver.New(devserver.Config{
		Script: devserver.IterationScript(iterations, solved),
		Delay:  delay,
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	fmt.Fprintf(os.Stderr, "fake council listening on http://%s\n", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	// Open SSE streams hold the server until their clients leave.
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
