// Command asset-sim drifts the seed fleet's telemetry and posts it to a
// running sentryd over HTTP, standing in for a real asset telemetry feed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

const (
	latJitterDeg    = 0.0001
	batteryDrain    = 0.001
	signalJitterMax = 0.05
	signalFloor     = 0.2
)

type simConfig struct {
	targetURL string
	interval  time.Duration
}

type assetState struct {
	id             string
	lat, lon       float64
	battery, signal float64
}

func defaultConfig() simConfig {
	return simConfig{
		targetURL: "http://localhost:8080",
		interval:  2 * time.Second,
	}
}

func main() {
	cfg := defaultConfig()

	if v := os.Getenv("SENTRYD_URL"); v != "" {
		cfg.targetURL = v
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid INTERVAL", "value", v, "error", err)
			os.Exit(1)
		}
		cfg.interval = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("asset-sim failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg simConfig) error {
	fleet := []*assetState{
		{id: "drone-alpha", lat: 33.94, lon: -118.41, battery: 1.0, signal: 1.0},
		{id: "drone-beta", lat: 33.95, lon: -118.40, battery: 1.0, signal: 1.0},
		{id: "ugv-sierra", lat: 33.93, lon: -118.42, battery: 1.0, signal: 1.0},
	}

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	slog.Info("asset-sim started", "target", cfg.targetURL, "interval", cfg.interval, "fleet_size", len(fleet))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, a := range fleet {
				drift(a)
				if err := pushTelemetry(ctx, client, cfg.targetURL, a); err != nil {
					slog.Error("push telemetry failed", "asset_id", a.id, "error", err)
					continue
				}
				slog.Info("pushed telemetry", "asset_id", a.id, "lat", a.lat, "lon", a.lon, "battery", a.battery)
			}
		}
	}
}

func drift(a *assetState) {
	a.lat += (rand.Float64()*2 - 1) * latJitterDeg
	a.lon += (rand.Float64()*2 - 1) * latJitterDeg
	a.battery = max(0, a.battery-batteryDrain)
	a.signal = clamp(a.signal+(rand.Float64()*2-1)*signalJitterMax, signalFloor, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pushTelemetry(ctx context.Context, client *http.Client, targetURL string, a *assetState) error {
	q := url.Values{
		"asset_id": {a.id},
		"lat":      {strconv.FormatFloat(a.lat, 'f', 6, 64)},
		"lon":      {strconv.FormatFloat(a.lon, 'f', 6, 64)},
		"battery":  {strconv.FormatFloat(a.battery, 'f', 4, 64)},
		"signal":   {strconv.FormatFloat(a.signal, 'f', 4, 64)},
	}
	reqURL := fmt.Sprintf("%s/v1/assets/telemetry?%s", targetURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post telemetry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
