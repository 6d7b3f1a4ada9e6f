// Package observer streams reconciliation events to local watchers over
// WebSocket. It is read-only by construction: the hub receives recorder
// callbacks from the loop and fans them out; nothing here can reach the
// canvas client.
package observer

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ShadowDevAt42/ftplace-script/internal/board"
	"github.com/ShadowDevAt42/ftplace-script/internal/scheduler"
)

const Version = "1.0"

// Wire messages.

type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type BoardMeta struct {
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	FetchedAt time.Time `json:"fetched_at"`
}

type BootstrapResponse struct {
	ProtocolVersion string        `json:"protocol_version"`
	Board           *BoardMeta    `json:"board,omitempty"`
	Palette         []board.Color `json:"palette,omitempty"`
}

type snapshotEvent struct {
	Type string `json:"type"`
	BoardMeta
}

type cycleEvent struct {
	Type string `json:"type"`
	scheduler.CycleReport
}

type placementEvent struct {
	Type string `json:"type"`
	scheduler.PlacementReport
}

// Hub implements scheduler.Recorder. Subscriber channels are buffered and
// lossy: a slow watcher misses events instead of slowing the loop.
type Hub struct {
	log *log.Logger

	mu       sync.Mutex
	subs     map[uint64]chan []byte
	nextID   uint64
	lastMeta *BoardMeta
	lastPal  []board.Color
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{log: logger, subs: map[uint64]chan []byte{}}
}

func (h *Hub) RecordSnapshot(snap *board.Snapshot, pal board.Palette) {
	meta := BoardMeta{Width: snap.Width, Height: snap.Height, FetchedAt: snap.FetchedAt}
	colors := make([]board.Color, 0, len(pal))
	for _, c := range pal {
		colors = append(colors, c)
	}

	h.mu.Lock()
	h.lastMeta = &meta
	h.lastPal = colors
	h.mu.Unlock()

	h.publish(snapshotEvent{Type: "SNAPSHOT", BoardMeta: meta})
}

func (h *Hub) RecordCycle(c scheduler.CycleReport) {
	h.publish(cycleEvent{Type: "CYCLE", CycleReport: c})
}

func (h *Hub) RecordPlacement(p scheduler.PlacementReport) {
	h.publish(placementEvent{Type: "PLACEMENT", PlacementReport: p})
}

func (h *Hub) bootstrap() BootstrapResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	return BootstrapResponse{ProtocolVersion: Version, Board: h.lastMeta, Palette: h.lastPal}
}

func (h *Hub) publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Printf("observer: marshal event: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- b:
		default:
			// Drop for this subscriber; the stream is best effort.
			_ = id
		}
	}
}

func (h *Hub) subscribe() (uint64, chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan []byte, 256)
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}
