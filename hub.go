package mineland

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fed135/mine-land/internal/game"
	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/telemetry"
	"github.com/fed135/mine-land/logging"
	lognetwork "github.com/fed135/mine-land/logging/network"
)

// CommandRejectQueueLimit reports a command dropped by per-connection
// throttling or a saturated ring.
const CommandRejectQueueLimit = "queue_limit"

// HubConfig tunes the loop and the staging queue.
type HubConfig struct {
	TickRate     int
	QueueSize    int
	PerConnLimit int
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Publisher    logging.Publisher
}

func (c HubConfig) normalized() HubConfig {
	if c.TickRate <= 0 {
		c.TickRate = DefaultTickRate
	}
	if c.QueueSize <= 0 {
		c.QueueSize = commandQueueCapacity
	}
	if c.PerConnLimit <= 0 {
		c.PerConnLimit = perConnCommandLimit
	}
	if c.Logger == nil {
		c.Logger = telemetry.NopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = telemetry.NopMetrics()
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	return c
}

// Hub owns the subscribers and feeds staged commands into the engine from a
// single loop goroutine. All world mutation happens on that goroutine; the
// connection read loops only parse and stage.
type Hub struct {
	engine    *game.Engine
	cfg       HubConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	queue     *commandQueue

	subMu       sync.Mutex
	subscribers map[string]*subscriber

	throttleMu  sync.Mutex
	perConn     map[string]int
	dropCounts  map[string]uint64
	lastOccWarn int
}

// NewHub wraps an engine.
func NewHub(engine *game.Engine, cfg HubConfig) *Hub {
	cfg = cfg.normalized()
	return &Hub{
		engine:      engine,
		cfg:         cfg,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		publisher:   cfg.Publisher,
		queue:       newCommandQueue(cfg.QueueSize, cfg.Metrics),
		subscribers: make(map[string]*subscriber),
		perConn:     make(map[string]int),
		dropCounts:  make(map[string]uint64),
	}
}

// Subscribe registers a connection and starts its writer pump.
func (h *Hub) Subscribe(connID string, conn *websocket.Conn) {
	sub := newSubscriber(connID, conn, h.logger, h.metrics)

	h.subMu.Lock()
	if existing, ok := h.subscribers[connID]; ok {
		existing.close()
	}
	h.subscribers[connID] = sub
	count := len(h.subscribers)
	h.subMu.Unlock()

	h.metrics.Store("hub_subscribers", uint64(count))
	lognetwork.ConnectionOpened(context.Background(), h.publisher, 0, lognetwork.ConnectionPayload{
		ConnID:      connID,
		Subscribers: count,
	})
	go sub.run()
}

// Drop tears down a connection's outbound side and stages its disconnect for
// the engine. Safe to call more than once.
func (h *Hub) Drop(connID string) {
	h.subMu.Lock()
	sub, ok := h.subscribers[connID]
	if ok {
		delete(h.subscribers, connID)
	}
	count := len(h.subscribers)
	h.subMu.Unlock()

	if !ok {
		return
	}
	sub.close()
	h.metrics.Store("hub_subscribers", uint64(count))
	lognetwork.ConnectionClosed(context.Background(), h.publisher, 0, lognetwork.ConnectionPayload{
		ConnID:      connID,
		Subscribers: count,
	})
	h.Enqueue(Command{ConnID: connID, Topic: CommandDisconnect})
}

// Enqueue stages one command, enforcing the per-connection budget. Drops are
// logged on power-of-two counts so a flooding client cannot flood the log.
func (h *Hub) Enqueue(cmd Command) (bool, string) {
	if cmd.Topic == CommandDisconnect || cmd.Topic == CommandReset {
		// Lifecycle commands bypass the per-connection budget.
		if !h.queue.push(cmd) {
			return false, CommandRejectQueueLimit
		}
		return true, ""
	}

	h.throttleMu.Lock()
	count := h.perConn[cmd.ConnID]
	if count >= h.cfg.PerConnLimit {
		dropCount := h.dropCounts[cmd.ConnID] + 1
		h.dropCounts[cmd.ConnID] = dropCount
		h.throttleMu.Unlock()
		if dropCount&(dropCount-1) == 0 {
			h.logger.Printf("[backpressure] dropping command conn=%s topic=%s count=%d limit=%d",
				cmd.ConnID, cmd.Topic, dropCount, h.cfg.PerConnLimit)
			lognetwork.CommandDropped(context.Background(), h.publisher, 0, lognetwork.DropPayload{
				ConnID: cmd.ConnID,
				Topic:  string(cmd.Topic),
				Count:  dropCount,
			})
		}
		return false, CommandRejectQueueLimit
	}
	h.perConn[cmd.ConnID] = count + 1
	h.throttleMu.Unlock()

	if !h.queue.push(cmd) {
		return false, CommandRejectQueueLimit
	}
	if occ := h.queue.len(); occ >= queueWarningStep {
		h.throttleMu.Lock()
		warn := occ/queueWarningStep > h.lastOccWarn
		if warn {
			h.lastOccWarn = occ / queueWarningStep
		}
		h.throttleMu.Unlock()
		if warn {
			h.logger.Printf("command queue occupancy %d", occ)
		}
	}
	return true, ""
}

// Reset stages a world regeneration, used by the admin HTTP surface.
func (h *Hub) Reset(seed string) bool {
	ok, _ := h.Enqueue(Command{Topic: CommandReset, ResetSeed: seed})
	return ok
}

// Run drives the fixed-rate loop until stop closes. Each tick first settles
// time-driven work (chained explosions, the idle sweep), then executes the
// staged commands in arrival order.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			h.step(now)
		}
	}
}

func (h *Hub) step(now time.Time) {
	h.route(h.engine.Tick(now))

	commands := h.queue.drain()
	h.resetThrottle()
	for _, cmd := range commands {
		h.route(h.dispatch(cmd))
	}
}

func (h *Hub) resetThrottle() {
	h.throttleMu.Lock()
	if len(h.perConn) > 0 {
		h.perConn = make(map[string]int)
	}
	h.lastOccWarn = 0
	h.throttleMu.Unlock()
}

func (h *Hub) dispatch(cmd Command) []game.Frame {
	switch cmd.Topic {
	case CommandWelcome:
		if cmd.Prefs == nil {
			return nil
		}
		return h.engine.Welcome(cmd.ConnID, *cmd.Prefs)
	case CommandAction:
		if cmd.Action == nil {
			return nil
		}
		return h.engine.HandleAction(cmd.ConnID, *cmd.Action)
	case CommandDisconnect:
		return h.engine.Disconnect(cmd.ConnID)
	case CommandDashboard:
		if cmd.Dashboard == nil {
			return nil
		}
		return h.engine.Dashboard(cmd.ConnID, *cmd.Dashboard)
	case CommandReset:
		return h.engine.Reset(cmd.ResetSeed)
	default:
		h.logger.Printf("unknown command topic %q", cmd.Topic)
		return nil
	}
}

// route marshals each frame once and delivers it: unicast frames go to their
// connection's queue, broadcast frames to every queue, in plan order. A
// frame's unicast therefore always precedes the broadcasts planned after it.
func (h *Hub) route(frames []game.Frame) {
	for _, frame := range frames {
		if frame.Topic == "" {
			if frame.Close {
				h.closeConn(frame.ConnID)
			}
			continue
		}
		data, err := proto.Encode(frame.Topic, frame.Payload)
		if err != nil {
			h.logger.Printf("encode %s frame: %v", frame.Topic, err)
			continue
		}
		if frame.ConnID == "" {
			h.subMu.Lock()
			for _, sub := range h.subscribers {
				sub.enqueue(data)
			}
			h.subMu.Unlock()
			continue
		}
		h.subMu.Lock()
		sub := h.subscribers[frame.ConnID]
		h.subMu.Unlock()
		if sub != nil {
			sub.enqueue(data)
		}
		if frame.Close {
			h.closeConn(frame.ConnID)
		}
	}
}

// closeConn seals the outbound queue so pending frames flush before the
// socket closes; the read loop then observes the close and stages the
// disconnect.
func (h *Hub) closeConn(connID string) {
	h.subMu.Lock()
	sub, ok := h.subscribers[connID]
	if ok {
		delete(h.subscribers, connID)
	}
	h.subMu.Unlock()
	if ok {
		sub.close()
	}
}

// HubDiagnostics is the hub block of the /diagnostics payload.
type HubDiagnostics struct {
	Subscribers int              `json:"subscribers"`
	QueuedCmds  int              `json:"queuedCommands"`
	TickRate    int              `json:"tickRate"`
	Engine      game.Diagnostics `json:"engine"`
}

// Diagnostics snapshots hub and engine state for the HTTP endpoint.
func (h *Hub) Diagnostics() HubDiagnostics {
	h.subMu.Lock()
	subs := len(h.subscribers)
	h.subMu.Unlock()
	return HubDiagnostics{
		Subscribers: subs,
		QueuedCmds:  h.queue.len(),
		TickRate:    h.cfg.TickRate,
		Engine:      h.engine.Snapshot(),
	}
}
