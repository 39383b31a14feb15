// Package ws owns the socket edge: the upgrade, the per-connection read loop,
// and the transport-level flood guard in front of the game's own rate
// limiter. Read loops only parse and stage; the hub's loop goroutine does
// everything else.
package ws

import (
	nethttp "net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	mineland "github.com/fed135/mine-land"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/telemetry"
)

const (
	maxMessageSize = 4096
	// defaultFrameRate and defaultFrameBurst bound inbound frames per
	// connection before any of them reach the command queue.
	defaultFrameRate  = 40
	defaultFrameBurst = 80
)

// HandlerConfig tunes the socket edge.
type HandlerConfig struct {
	Logger     telemetry.Logger
	Metrics    telemetry.Metrics
	FrameRate  rate.Limit
	FrameBurst int
}

// Handler upgrades HTTP requests and pumps inbound frames into the hub.
type Handler struct {
	hub      *mineland.Hub
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	upgrader websocket.Upgrader
	rate     rate.Limit
	burst    int
}

// NewHandler builds the /ws handler.
func NewHandler(hub *mineland.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	burst := cfg.FrameBurst
	if burst <= 0 {
		burst = defaultFrameBurst
	}
	return &Handler{
		hub:     hub,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		rate:  frameRate,
		burst: burst,
	}
}

// Handle runs one connection until its socket closes.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	conn.SetReadLimit(maxMessageSize)
	h.hub.Subscribe(connID, conn)
	defer h.hub.Drop(connID)

	limiter := rate.NewLimiter(h.rate, h.burst)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.metrics.Add("ws_frames_in_total", 1)

		if !limiter.Allow() {
			h.metrics.Add("ws_frames_throttled_total", 1)
			continue
		}

		env, err := proto.DecodeEnvelope(payload)
		if err != nil {
			h.logger.Printf("discarding malformed frame from %s: %v", connID, err)
			h.metrics.Add("ws_frames_malformed_total", 1)
			continue
		}
		h.dispatch(connID, env)
	}
}

func (h *Handler) dispatch(connID string, env proto.Envelope) {
	switch env.Topic {
	case proto.TopicPreferences:
		prefs, err := proto.DecodePreferences(env.Payload)
		if err != nil {
			h.logger.Printf("discarding preferences from %s: %v", connID, err)
			return
		}
		h.hub.Enqueue(mineland.Command{ConnID: connID, Topic: mineland.CommandWelcome, Prefs: &prefs})
	case proto.TopicAction:
		req, err := proto.DecodeAction(env.Payload)
		if err != nil {
			h.logger.Printf("discarding action from %s: %v", connID, err)
			return
		}
		if ok, _ := h.hub.Enqueue(mineland.Command{ConnID: connID, Topic: mineland.CommandAction, Action: &req}); !ok {
			h.metrics.Add("ws_commands_dropped_total", 1)
		}
	case proto.TopicDashboard:
		req, err := proto.DecodeDashboard(env.Payload)
		if err != nil {
			h.logger.Printf("discarding dashboard request from %s: %v", connID, err)
			return
		}
		h.hub.Enqueue(mineland.Command{ConnID: connID, Topic: mineland.CommandDashboard, Dashboard: &req})
	case proto.TopicDisconnect:
		h.hub.Enqueue(mineland.Command{ConnID: connID, Topic: mineland.CommandDisconnect})
	default:
		h.logger.Printf("unknown topic %q from %s", env.Topic, connID)
		h.metrics.Add("ws_frames_unknown_total", 1)
	}
}
