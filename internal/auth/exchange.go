package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// NewHTTPExchange returns an ExchangeFunc against the authority's token
// endpoint. The refresh token travels as a cookie, matching how the site
// itself refreshes sessions; rotated tokens come back either as Set-Cookie
// headers or as a JSON body.
func NewHTTPExchange(baseURL string, client *http.Client) ExchangeFunc {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return func(ctx context.Context, refreshToken string) (Tokens, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/token", nil)
		if err != nil {
			return Tokens{}, err
		}
		req.Header.Set("Accept", "application/json")
		req.AddCookie(&http.Cookie{Name: "refresh", Value: refreshToken})

		resp, err := client.Do(req)
		if err != nil {
			return Tokens{}, fmt.Errorf("token endpoint: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return Tokens{}, fmt.Errorf("token endpoint: refresh rejected (http %d)", resp.StatusCode)
		}

		out := Tokens{Refresh: refreshToken}
		for _, c := range resp.Cookies() {
			switch c.Name {
			case "token":
				out.Access = c.Value
			case "refresh":
				out.Refresh = c.Value
			}
		}
		if out.Access == "" {
			var body struct {
				Token   string `json:"token"`
				Refresh string `json:"refresh"`
			}
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err := json.Unmarshal(b, &body); err != nil || body.Token == "" {
				return Tokens{}, fmt.Errorf("token endpoint: no token in response")
			}
			out.Access = body.Token
			if body.Refresh != "" {
				out.Refresh = body.Refresh
			}
		}
		return out, nil
	}
}
