package client

import (
	"encoding/json"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
)

// Wire types for the canvas authority's API, as the site actually serves
// them. The write endpoint wants the color id as a string.

type wirePixel struct {
	Username string `json:"username"`
	ColorID  uint8  `json:"color_id"`
	SetTime  string `json:"set_time"`
}

type boardResponse struct {
	Colors []board.Color `json:"colors"`
	Type   string        `json:"type"`
	Board  [][]wirePixel `json:"board"`
}

type placePixelRequest struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// timerResponse rides along on write responses: per-account cooldown
// timestamps, plus "Too early" when the quota is spent.
type timerResponse struct {
	Timers  []string `json:"timers"`
	Message string   `json:"message"`
}

func parseTimers(body []byte) (timerResponse, bool) {
	var tr timerResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return timerResponse{}, false
	}
	return tr, true
}

// earliestWait converts the authority's cooldown timestamps into how long
// to wait from now, with one second of slack past the earliest slot.
// Returns 0 if no usable timer is present.
func earliestWait(tr timerResponse, now time.Time) time.Duration {
	var earliest time.Time
	for _, raw := range tr.Timers {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		if earliest.IsZero() || ts.Before(earliest) {
			earliest = ts
		}
	}
	if earliest.IsZero() || !earliest.After(now) {
		return 0
	}
	return earliest.Sub(now) + time.Second
}
