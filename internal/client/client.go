// Package client talks to the canvas authority: authenticated board reads
// and single-pixel writes, with transient-failure retry and credential
// refresh absorbed at this layer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/auth"
	"github.com/ShadowDevAt42/ftplace-script/internal/board"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:134.0) Gecko/20100101 Firefox/134.0"

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     *log.Logger
	UserAgent  string
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = DefaultRetryPolicy()
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, "[client] ", log.LstdFlags|log.Lmicroseconds)
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

type Client struct {
	http    *http.Client
	baseURL string
	retry   RetryPolicy
	creds   *auth.Manager
	log     *log.Logger
	ua      string
}

func New(cfg Config, creds *auth.Manager) (*Client, error) {
	cfg.defaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	return &Client{
		http:    cfg.HTTPClient,
		baseURL: cfg.BaseURL,
		retry:   cfg.Retry,
		creds:   creds,
		log:     cfg.Logger,
		ua:      cfg.UserAgent,
	}, nil
}

// FetchBoard reads the full canvas plus its palette. Retries per the
// shared policy; the snapshot is built fresh and never mutated afterwards.
func (c *Client) FetchBoard(ctx context.Context) (*board.Snapshot, board.Palette, error) {
	var snap *board.Snapshot
	var pal board.Palette

	err := c.retry.run(ctx, c.log, c.creds, "get_board", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/get?type=board", nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Op: "get_board", Err: err}
		}
		defer resp.Body.Close()

		if err := c.classify("get_board", resp, nil); err != nil {
			return err
		}

		var br boardResponse
		if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
			return &FatalError{Op: "get_board", Status: resp.StatusCode, Body: fmt.Sprintf("decode: %v", err)}
		}

		grid := make([][]uint8, len(br.Board))
		for i, row := range br.Board {
			r := make([]uint8, len(row))
			for j, px := range row {
				r[j] = px.ColorID
			}
			grid[i] = r
		}
		s, err := board.FromGrid(grid, time.Now().UTC())
		if err != nil {
			return &FatalError{Op: "get_board", Status: resp.StatusCode, Body: err.Error()}
		}

		p := make(board.Palette, len(br.Colors))
		for _, col := range br.Colors {
			p[col.ID] = col
		}

		snap, pal = s, p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	c.log.Printf("board fetched: %dx%d, %d colors", snap.Width, snap.Height, len(pal))
	return snap, pal, nil
}

// PlacePixel writes one pixel. The returned duration is the authority's
// cooldown hint for the next pixel (0 if none was reported).
func (c *Client) PlacePixel(ctx context.Context, x, y int, colorID uint8) (time.Duration, error) {
	var hint time.Duration

	err := c.retry.run(ctx, c.log, c.creds, "place_pixel", func(ctx context.Context) error {
		body, err := json.Marshal(placePixelRequest{X: x, Y: y, Color: strconv.Itoa(int(colorID))})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/set", bytes.NewReader(body))
		if err != nil {
			return err
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Referer", fmt.Sprintf("%s/?x=%d&y=%d&scale=1", c.baseURL, x, y))

		resp, err := c.http.Do(req)
		if err != nil {
			return &TransientError{Op: "place_pixel", Err: err}
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

		if err := c.classify("place_pixel", resp, raw); err != nil {
			return err
		}

		if tr, ok := parseTimers(raw); ok {
			hint = earliestWait(tr, time.Now().UTC())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.log.Printf("placed pixel at (%d,%d) color %d", x, y, colorID)
	return hint, nil
}

// classify maps a response to the error taxonomy. rawBody may be nil when
// the body has not been read yet (fetch path reads it only on success).
func (c *Client) classify(op string, resp *http.Response, rawBody []byte) error {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadGateway:
		return &TransientError{Op: op, Status: status}
	case status == http.StatusUnauthorized:
		return &AuthError{Op: op, Status: status}
	case status == http.StatusUpgradeRequired:
		// The authority rotates tokens in-band: fresh pair via Set-Cookie.
		rotated := c.adoptCookies(resp)
		return &AuthError{Op: op, Status: status, TokensRotated: rotated}
	}

	if rawBody == nil {
		rawBody, _ = io.ReadAll(io.LimitReader(resp.Body, 4096))
	}
	if tr, ok := parseTimers(rawBody); ok && tr.Message == "Too early" {
		return &TooEarlyError{RetryAfter: earliestWait(tr, time.Now().UTC())}
	}
	return &FatalError{Op: op, Status: status, Body: snippet(rawBody)}
}

func (c *Client) adoptCookies(resp *http.Response) bool {
	var access, refresh string
	for _, ck := range resp.Cookies() {
		switch ck.Name {
		case "token":
			access = ck.Value
		case "refresh":
			refresh = ck.Value
		}
	}
	if access == "" && refresh == "" {
		return false
	}
	c.creds.Adopt(access, refresh)
	return true
}

// setHeaders sends the header set a browser tab on the site would.
// Accept-Encoding and Connection stay with the transport: it negotiates
// gzip and decompresses for us, which a hand-set value would turn off.
func (c *Client) setHeaders(req *http.Request) {
	tok := c.creds.Current()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("User-Agent", c.ua)
	req.AddCookie(&http.Cookie{Name: "refresh", Value: tok.Refresh})
	req.AddCookie(&http.Cookie{Name: "token", Value: tok.Access})
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
