package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/artifact"
	"github.com/ShadowDevAt42/ftplace-script/internal/auth"
	"github.com/ShadowDevAt42/ftplace-script/internal/client"
	"github.com/ShadowDevAt42/ftplace-script/internal/config"
	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
	"github.com/ShadowDevAt42/ftplace-script/internal/persistence/indexdb"
	"github.com/ShadowDevAt42/ftplace-script/internal/persistence/journal"
	"github.com/ShadowDevAt42/ftplace-script/internal/scheduler"
	"github.com/ShadowDevAt42/ftplace-script/internal/transport/observer"
)

// slotFlags is one pattern slot as given on the command line.
type slotFlags struct {
	name    string
	pattern *string
	x       *int
	y       *int
}

func main() {
	var (
		configPath    = flag.String("config", "", "path to ftplace.yaml (optional)")
		baseURL       = flag.String("base_url", "", "canvas base URL (overrides config)")
		dataDir       = flag.String("data", "", "runtime data directory (overrides config)")
		observeListen = flag.String("observe_listen", "", "local status stream listen address (overrides config; \"off\" disables)")
		disableDB     = flag.Bool("disable_db", false, "disable the sqlite history index")

		refreshToken = flag.String("refresh_token", "", "refresh token cookie (or set FTPLACE_REFRESH_TOKEN)")
		accessToken  = flag.String("token", "", "access token cookie (or set FTPLACE_TOKEN)")
	)

	slots := make([]slotFlags, 0, 5)
	for _, name := range []string{"defensive1", "defensive2", "build1", "build2", "build3"} {
		slots = append(slots, slotFlags{
			name:    name,
			pattern: flag.String(name+"_pattern", "", "pattern file for the "+name+" slot"),
			x:       flag.Int(name+"_x", 0, "board x origin for the "+name+" slot"),
			y:       flag.Int(name+"_y", 0, "board y origin for the "+name+" slot"),
		})
	}
	flag.Parse()

	logger := log.New(os.Stdout, "[ftplace] ", log.LstdFlags|log.Lmicroseconds)

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
	if strings.TrimSpace(*observeListen) != "" {
		cfg.ObserveListen = strings.TrimSpace(*observeListen)
	}
	if *disableDB {
		cfg.DisableDB = true
	}

	tokens := auth.Tokens{
		Refresh: firstNonEmpty(*refreshToken, os.Getenv("FTPLACE_REFRESH_TOKEN")),
		Access:  firstNonEmpty(*accessToken, os.Getenv("FTPLACE_TOKEN")),
	}
	if tokens.Refresh == "" {
		logger.Fatalf("refresh token is required (-refresh_token or FTPLACE_REFRESH_TOKEN)")
	}

	set, err := loadTargets(cfg, slots)
	if err != nil {
		var ferr *pattern.FormatError
		if errors.As(err, &ferr) {
			logger.Fatalf("invalid pattern file: %v", ferr)
		}
		logger.Fatalf("load targets: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("create data dir: %v", err)
	}

	creds := auth.NewManager(tokens, auth.NewHTTPExchange(cfg.BaseURL, nil))
	canvas, err := client.New(client.Config{BaseURL: cfg.BaseURL}, creds)
	if err != nil {
		logger.Fatalf("canvas client: %v", err)
	}

	jn := journal.New(cfg.DataDir, logger)
	defer jn.Close()
	recorders := []scheduler.Recorder{
		artifact.NewWriter(cfg.DataDir, logger),
		jn,
	}

	if !cfg.DisableDB {
		idx, err := indexdb.Open(filepath.Join(cfg.DataDir, "history.db"))
		if err != nil {
			logger.Fatalf("open history index: %v", err)
		}
		defer idx.Close()
		recorders = append(recorders, idx)
	}

	if cfg.ObserveListen != "" && cfg.ObserveListen != "off" {
		hub := observer.NewHub(logger)
		recorders = append(recorders, hub)
		srv := &http.Server{
			Addr:              cfg.ObserveListen,
			Handler:           observer.NewServer(hub, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("status stream on http://%s/v1/ws", cfg.ObserveListen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("status stream: %v", err)
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	loop := scheduler.New(canvas, set, scheduler.Config{
		BatchSize: cfg.BatchSize,
		Window:    cfg.Window,
		Pacing:    cfg.Pacing,
		Logger:    logger,
		Recorders: recorders,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Printf("reconciling against %s (%d targets, batch %d / %s)",
		cfg.BaseURL, len(set.Targets()), cfg.BatchSize, cfg.Window)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		var ae *client.AuthError
		if errors.As(err, &ae) {
			logger.Fatalf("credentials rejected by the authority (%v); the refresh token is no longer valid, obtain a fresh one and restart", err)
		}
		logger.Fatalf("run: %v", err)
	}
	logger.Printf("shutting down")
}

// loadTargets merges config target slots with command-line slots; a flag
// slot replaces the config slot of the same tier.
func loadTargets(cfg config.Config, slots []slotFlags) (*pattern.Set, error) {
	type spec struct {
		path string
		x, y int
	}
	byTier := map[pattern.Tier]spec{}

	for _, ts := range cfg.Targets {
		tier, err := config.TierByName(ts.Tier)
		if err != nil {
			return nil, err
		}
		byTier[tier] = spec{path: ts.Pattern, x: ts.X, y: ts.Y}
	}
	for _, s := range slots {
		if strings.TrimSpace(*s.pattern) == "" {
			continue
		}
		tier, err := config.TierByName(s.name)
		if err != nil {
			return nil, err
		}
		byTier[tier] = spec{path: strings.TrimSpace(*s.pattern), x: *s.x, y: *s.y}
	}

	if _, ok := byTier[pattern.TierDefensivePrimary]; !ok {
		return nil, fmt.Errorf("the defensive1 slot is mandatory (-defensive1_pattern with -defensive1_x/-defensive1_y)")
	}

	targets := make([]pattern.Target, 0, len(byTier))
	for tier, sp := range byTier {
		tg, err := pattern.LoadFile(sp.path, sp.x, sp.y, tier)
		if err != nil {
			return nil, err
		}
		targets = append(targets, tg)
	}
	return pattern.NewSet(targets)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
