// Package net assembles the HTTP surface: the socket endpoint, health and
// diagnostics, the admin world-reset hook, and optional static client
// serving.
package net

import (
	"encoding/json"
	nethttp "net/http"
	"strings"
	"time"

	mineland "github.com/fed135/mine-land"
	"github.com/fed135/mine-land/internal/net/ws"
	"github.com/fed135/mine-land/internal/telemetry"
	"github.com/fed135/mine-land/logging"
)

// HTTPHandlerConfig tunes the HTTP surface.
type HTTPHandlerConfig struct {
	ClientDir   string
	AdminKey    string
	Logger      telemetry.Logger
	Metrics     *telemetry.Counters
	RouterStats func() logging.RouterStats
}

// NewHTTPHandler builds the server mux.
func NewHTTPHandler(hub *mineland.Hub, wsHandler *ws.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	started := time.Now()

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/ws", wsHandler.Handle)

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"status":        "ok",
			"uptimeSeconds": int64(time.Since(started) / time.Second),
		})
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := map[string]any{
			"hub": hub.Diagnostics(),
		}
		if cfg.Metrics != nil {
			payload["counters"] = cfg.Metrics.Snapshot()
		}
		if cfg.RouterStats != nil {
			payload["logging"] = cfg.RouterStats()
		}
		writeJSON(w, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/world/reset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.AdminKey == "" || r.Header.Get("X-Admin-Key") != cfg.AdminKey {
			httpError(w, "forbidden", nethttp.StatusForbidden)
			return
		}
		var body struct {
			Seed string `json:"seed"`
		}
		if r.Body != nil {
			// An empty or malformed body means a fresh default seed.
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if !hub.Reset(strings.TrimSpace(body.Seed)) {
			httpError(w, "queue full", nethttp.StatusServiceUnavailable)
			return
		}
		logger.Printf("world reset staged (seed %q)", body.Seed)
		writeJSON(w, nethttp.StatusAccepted, map[string]any{"status": "staged"})
	})

	if cfg.ClientDir != "" {
		mux.Handle("/", nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
