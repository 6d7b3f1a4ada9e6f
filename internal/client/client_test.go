package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/auth"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// sleepRecorder satisfies RetryPolicy.Sleep and records every backoff.
type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, creds *auth.Manager, rec *sleepRecorder, maxAttempts int) *Client {
	t.Helper()
	if creds == nil {
		creds = auth.NewManager(auth.Tokens{Access: "tok", Refresh: "ref"}, nil)
	}
	c, err := New(Config{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Retry:      RetryPolicy{MaxAttempts: maxAttempts, Backoff: 2 * time.Minute, Sleep: rec.sleep},
		Logger:     testLogger(),
	}, creds)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPlacePixel_TransientRetriesThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"timers":[]}`)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 10)

	if _, err := c.PlacePixel(context.Background(), 1, 2, 4); err != nil {
		t.Fatalf("PlacePixel: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("attempts: got %d want 3", got)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("backoffs: got %d want 2", len(rec.slept))
	}
	for _, d := range rec.slept {
		if d != 2*time.Minute {
			t.Fatalf("backoff duration: got %s want 2m", d)
		}
	}
}

func TestPlacePixel_SendsBrowserHeadersAndCookies(t *testing.T) {
	var got http.Header
	var cookies []*http.Cookie
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		cookies = r.Cookies()
		fmt.Fprint(w, `{"timers":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil, &sleepRecorder{}, 10)
	if _, err := c.PlacePixel(context.Background(), 3, 7, 4); err != nil {
		t.Fatalf("PlacePixel: %v", err)
	}

	want := map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "fr,fr-FR;q=0.8,en-US;q=0.5,en;q=0.3",
		"Content-Type":    "application/json",
		"Origin":          srv.URL,
		"Referer":         srv.URL + "/?x=3&y=7&scale=1",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	}
	for k, v := range want {
		if h := got.Get(k); h != v {
			t.Fatalf("%s header: got %q want %q", k, h, v)
		}
	}
	if ua := got.Get("User-Agent"); ua != defaultUserAgent {
		t.Fatalf("User-Agent: %q", ua)
	}
	found := map[string]string{}
	for _, ck := range cookies {
		found[ck.Name] = ck.Value
	}
	if found["refresh"] != "ref" || found["token"] != "tok" {
		t.Fatalf("auth cookies: %+v", found)
	}
}

func TestPlacePixel_RetryExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 3)

	_, err := c.PlacePixel(context.Background(), 0, 0, 1)
	var re *RetryExhausted
	if !errors.As(err, &re) {
		t.Fatalf("expected RetryExhausted, got %v", err)
	}
	if re.Attempts != 3 {
		t.Fatalf("attempts: got %d want 3", re.Attempts)
	}
	if len(rec.slept) != 2 {
		t.Fatalf("backoffs before giving up: got %d want 2", len(rec.slept))
	}
}

func TestPlacePixel_AuthRefreshRetry(t *testing.T) {
	var refreshes atomic.Int32
	creds := auth.NewManager(auth.Tokens{Access: "stale", Refresh: "ref"}, func(context.Context, string) (auth.Tokens, error) {
		refreshes.Add(1)
		return auth.Tokens{Access: "fresh", Refresh: "ref2"}, nil
	})

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		ck, err := r.Cookie("token")
		if err != nil || ck.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"timers":[]}`)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, creds, rec, 10)

	if _, err := c.PlacePixel(context.Background(), 3, 3, 2); err != nil {
		t.Fatalf("PlacePixel: %v", err)
	}
	if got := refreshes.Load(); got != 1 {
		t.Fatalf("refreshes: got %d want 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("http calls: got %d want 2", got)
	}
	if len(rec.slept) != 0 {
		t.Fatalf("auth retry must not consume transient backoff, slept %d times", len(rec.slept))
	}
}

func TestPlacePixel_AuthFatalWhenRefreshFails(t *testing.T) {
	creds := auth.NewManager(auth.Tokens{Access: "stale", Refresh: "dead"}, func(context.Context, string) (auth.Tokens, error) {
		return auth.Tokens{}, errors.New("refresh token rejected")
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, creds, rec, 10)

	_, err := c.PlacePixel(context.Background(), 0, 0, 1)
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestPlacePixel_InBandTokenRotation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.SetCookie(w, &http.Cookie{Name: "token", Value: "rotated_t"})
			http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "rotated_r"})
			w.WriteHeader(http.StatusUpgradeRequired)
			return
		}
		ck, err := r.Cookie("token")
		if err != nil || ck.Value != "rotated_t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"timers":[]}`)
	}))
	defer srv.Close()

	creds := auth.NewManager(auth.Tokens{Access: "old_t", Refresh: "old_r"}, func(context.Context, string) (auth.Tokens, error) {
		t.Fatal("refresh endpoint must not be hit for in-band rotation")
		return auth.Tokens{}, nil
	})
	rec := &sleepRecorder{}
	c := newTestClient(t, srv, creds, rec, 10)

	if _, err := c.PlacePixel(context.Background(), 5, 5, 7); err != nil {
		t.Fatalf("PlacePixel: %v", err)
	}
	if got := creds.Current(); got.Access != "rotated_t" || got.Refresh != "rotated_r" {
		t.Fatalf("rotated tokens not adopted: %+v", got)
	}
}

func TestPlacePixel_FatalNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 10)

	_, err := c.PlacePixel(context.Background(), 0, 0, 1)
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Fatalf("status: got %d", fe.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fatal errors must not be retried, got %d calls", got)
	}
}

func TestPlacePixel_TooEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		next := time.Now().UTC().Add(90 * time.Second).Format(time.RFC3339)
		_ = json.NewEncoder(w).Encode(map[string]any{"timers": []string{next}, "message": "Too early"})
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 10)

	_, err := c.PlacePixel(context.Background(), 0, 0, 1)
	var tee *TooEarlyError
	if !errors.As(err, &tee) {
		t.Fatalf("expected TooEarlyError, got %v", err)
	}
	if tee.RetryAfter < 80*time.Second || tee.RetryAfter > 100*time.Second {
		t.Fatalf("RetryAfter: got %s", tee.RetryAfter)
	}
}

func TestFetchBoard_DecodesGridAndPalette(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get" || r.URL.Query().Get("type") != "board" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		px := func(id uint8) map[string]any {
			return map[string]any{"username": "u", "color_id": id, "set_time": "2026-01-01T00:00:00Z"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type": "board",
			"colors": []map[string]any{
				{"id": 1, "name": "WHITE", "red": 255, "green": 255, "blue": 255},
				{"id": 2, "name": "BLACK", "red": 0, "green": 0, "blue": 0},
			},
			"board": []any{
				[]any{px(1), px(2), px(1)},
				[]any{px(2), px(2), px(2)},
			},
		})
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 10)

	snap, pal, err := c.FetchBoard(context.Background())
	if err != nil {
		t.Fatalf("FetchBoard: %v", err)
	}
	// Two served rows of three cells become a 2-wide, 3-tall canvas.
	if snap.Width != 2 || snap.Height != 3 {
		t.Fatalf("dims: got %dx%d want 2x3", snap.Width, snap.Height)
	}
	if got := snap.At(0, 1); got != 2 {
		t.Fatalf("At(0,1): got %d want 2", got)
	}
	if got := snap.At(1, 0); got != 2 {
		t.Fatalf("At(1,0): got %d want 2", got)
	}
	if len(pal) != 2 {
		t.Fatalf("palette: got %d colors want 2", len(pal))
	}
	if col, ok := pal.ByID(2); !ok || col.Name != "BLACK" {
		t.Fatalf("palette color 2: %+v ok=%v", col, ok)
	}
}

func TestFetchBoard_TransientThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		px := map[string]any{"username": "u", "color_id": 1, "set_time": ""}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":   "board",
			"colors": []map[string]any{{"id": 1, "name": "WHITE", "red": 255, "green": 255, "blue": 255}},
			"board":  []any{[]any{px}},
		})
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	c := newTestClient(t, srv, nil, rec, 10)

	if _, _, err := c.FetchBoard(context.Background()); err != nil {
		t.Fatalf("FetchBoard: %v", err)
	}
	if len(rec.slept) != 1 {
		t.Fatalf("backoffs: got %d want 1", len(rec.slept))
	}
}
