// Package main is a CLI driver that polls the geocode batch endpoint until
// all pending connections are resolved or the run stalls.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gekyxme/relnodes/internal/geocode"
	"github.com/gekyxme/relnodes/internal/middleware"
)

const requestTimeout = 2 * time.Minute

func main() {
	help := flag.Bool("help", false, "display help message")
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the API server")
	token := flag.String("token", os.Getenv("RELNODES_TOKEN"), "bearer access token (defaults to RELNODES_TOKEN)")
	flag.Parse()

	if *help {
		fmt.Println("Relnodes Geocoder")
		fmt.Println()
		fmt.Println("Drives POST /geocode batches until no pending work remains.")
		fmt.Println()
		fmt.Println("Usage: geocoder [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	logger := middleware.NewLogger(os.Getenv("RELNODES_ENV"))
	slog.SetDefault(logger)

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a bearer token is required (-token or RELNODES_TOKEN)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: requestTimeout}
	batch := func(ctx context.Context) (geocode.BatchResult, error) {
		return postBatch(ctx, client, *baseURL+"/geocode", *token)
	}

	driver := geocode.NewDriver(batch, logger)
	summary, err := driver.Run(ctx, func(p geocode.Progress) {
		logger.Info("batch complete",
			"batch_processed", p.BatchProcessed,
			"batch_updated", p.BatchUpdated,
			"success", p.Success,
			"attempted", p.Attempted,
		)
	})
	if err != nil {
		logger.Error("geocoding run aborted", "error", err,
			"success", summary.Success,
			"failed", summary.Failed,
		)
		os.Exit(1)
	}

	logger.Info("geocoding run finished",
		"success", summary.Success,
		"failed", summary.Failed,
	)
}

// postBatch invokes one batch on the server and decodes the result.
func postBatch(ctx context.Context, client *http.Client, url, token string) (geocode.BatchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return geocode.BatchResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return geocode.BatchResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return geocode.BatchResult{}, fmt.Errorf("batch request returned %d: %s", resp.StatusCode, body)
	}

	var result geocode.BatchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return geocode.BatchResult{}, fmt.Errorf("failed to decode batch result: %w", err)
	}
	return result, nil
}
