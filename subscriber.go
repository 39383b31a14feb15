package mineland

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fed135/mine-land/internal/telemetry"
)

// subscriber owns the outbound side of one connection: a bounded frame queue
// drained by a dedicated writer goroutine. Broadcast routing never blocks on
// a slow client; its frames are dropped and counted instead.
type subscriber struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu       sync.Mutex
	closed   bool
	dropped  uint64
	lastWarn time.Time
}

func newSubscriber(id string, conn *websocket.Conn, logger telemetry.Logger, metrics telemetry.Metrics) *subscriber {
	return &subscriber{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferFrames),
		logger:  logger,
		metrics: metrics,
	}
}

// enqueue stages one marshaled frame, dropping it when the queue is full or
// the subscriber already closed.
func (s *subscriber) enqueue(data []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.send <- data:
		s.mu.Unlock()
	default:
		s.dropped++
		s.metrics.Add("hub_frames_dropped_total", 1)
		warn := time.Since(s.lastWarn) > 5*time.Second
		if warn {
			s.lastWarn = time.Now()
		}
		dropped := s.dropped
		s.mu.Unlock()
		if warn {
			s.logger.Printf("subscriber %s backlog full, dropped %d frames", s.id, dropped)
		}
	}
}

// close seals the queue; the writer pump drains what is left and then closes
// the socket.
func (s *subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	s.mu.Unlock()
}

// run is the writer pump. It exits when the queue is sealed or a write
// fails, closing the socket either way.
func (s *subscriber) run() {
	defer s.conn.Close()
	for data := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Printf("write to %s failed: %v", s.id, err)
			return
		}
		s.metrics.Add("hub_frames_sent_total", 1)
		s.metrics.Add("hub_bytes_sent_total", uint64(len(data)))
	}
}
