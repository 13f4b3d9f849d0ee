package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"watchtorian/internal/models"
)

const (
	livePushInterval = 60 * time.Second
	liveWriteTimeout = 5 * time.Second
	liveSampleLimit  = 12
)

var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// liveSnapshot is pushed to websocket clients on connect and then periodically.
type liveSnapshot struct {
	GeneratedAt time.Time                `json:"generated_at"`
	History     models.LogHistory        `json:"history"`
	Latest      *models.TelemetrySample  `json:"latest"`
	Recent      []models.TelemetrySample `json:"recent"`
	Aggregates  int                      `json:"aggregates"`
	Uptime      uptimeResponse           `json:"uptime"`
	Error       string                   `json:"error,omitempty"`
}

func (s *Server) buildLiveSnapshot() liveSnapshot {
	out := liveSnapshot{GeneratedAt: time.Now(), Recent: []models.TelemetrySample{}}
	snap, err := s.snapshot()
	if err != nil {
		s.logger.Warn("live snapshot", "error", err)
		out.Error = err.Error()
		return out
	}
	out.History = snap.History
	if latest, ok := snap.Latest(); ok {
		out.Latest = &latest
	}
	out.Recent = lastN(snap.Samples, liveSampleLimit)
	out.Aggregates = len(snap.Aggregates)
	out.Uptime = buildUptime(snap.Samples)
	return out
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.serveLive(conn)
}

func (s *Server) serveLive(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeLive(conn, s.buildLiveSnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	// Reads only detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeLive(conn, s.buildLiveSnapshot()); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeLive(conn *websocket.Conn, payload liveSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return conn.WriteJSON(payload)
}
