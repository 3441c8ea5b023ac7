// Command ktracetail is a reference tail client: it polls a ktraced
// control-plane's /trace endpoint on an interval, printing every line of
// each snapshot (records still buffered in the pipe are printed again on
// the next poll), and reconnects with exponential backoff if the server is
// unreachable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:9090", "ktraced control-plane base address")
	pollInterval := flag.Duration("poll-interval", time.Second, "interval between /trace polls")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	client := &http.Client{Timeout: 10 * time.Second}
	pollLoop(ctx, client, *addr, *pollInterval, logger)
}

// pollLoop requests /trace_pipe_header once, then polls /trace on
// pollInterval forever, until ctx is canceled. Between failed HTTP
// requests it applies exponential backoff; a successful request resets
// the backoff so the next failure starts from the initial interval
// again.
func pollLoop(ctx context.Context, client *http.Client, addr string, pollInterval time.Duration, logger *slog.Logger) {
	printHeader(ctx, client, addr, logger)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fetchAndPrint(ctx, client, addr); err != nil {
				logger.Warn("ktracetail: poll failed", slog.Any("error", err))
				wait := b.NextBackOff()
				if wait == backoff.Stop {
					logger.Error("ktracetail: backoff exhausted; giving up")
					return
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			b.Reset()
		}
	}
}

func printHeader(ctx context.Context, client *http.Client, addr string, logger *slog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/trace_pipe_header", nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("ktracetail: failed to fetch trace pipe header", slog.Any("error", err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(os.Stdout, resp.Body)
}

func fetchAndPrint(ctx context.Context, client *http.Client, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/trace", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}
