// boardsnap fetches the canvas once and writes the palette listing, the
// color-id matrix and the PNG render, then exits. Useful for checking
// orientation and picking pattern origins without starting the loop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/artifact"
	"github.com/ShadowDevAt42/ftplace-script/internal/auth"
	"github.com/ShadowDevAt42/ftplace-script/internal/client"
	"github.com/ShadowDevAt42/ftplace-script/internal/config"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to ftplace.yaml (optional)")
		baseURL      = flag.String("base_url", "", "canvas base URL (overrides config)")
		dataDir      = flag.String("data", "", "output data directory (overrides config)")
		refreshToken = flag.String("refresh_token", "", "refresh token cookie (or set FTPLACE_REFRESH_TOKEN)")
		accessToken  = flag.String("token", "", "access token cookie (or set FTPLACE_TOKEN)")
		timeout      = flag.Duration("timeout", 2*time.Minute, "overall fetch timeout")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[boardsnap] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(*baseURL), "/")
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = strings.TrimSpace(*dataDir)
	}

	tokens := auth.Tokens{
		Refresh: firstNonEmpty(*refreshToken, os.Getenv("FTPLACE_REFRESH_TOKEN")),
		Access:  firstNonEmpty(*accessToken, os.Getenv("FTPLACE_TOKEN")),
	}

	creds := auth.NewManager(tokens, auth.NewHTTPExchange(cfg.BaseURL, nil))
	canvas, err := client.New(client.Config{BaseURL: cfg.BaseURL, Logger: logger}, creds)
	if err != nil {
		logger.Fatalf("canvas client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snap, pal, err := canvas.FetchBoard(ctx)
	if err != nil {
		logger.Fatalf("fetch board: %v", err)
	}
	logger.Printf("board %dx%d, %d colors", snap.Width, snap.Height, len(pal))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("create data dir: %v", err)
	}
	artifact.NewWriter(cfg.DataDir, logger).RecordSnapshot(snap, pal)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
