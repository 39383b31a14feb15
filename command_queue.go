package mineland

import (
	"sync"

	"github.com/fed135/mine-land/internal/net/proto"
	"github.com/fed135/mine-land/internal/telemetry"
)

const (
	commandQueueOccupancyMetricKey = "hub_command_queue_occupancy"
	commandQueueOverflowMetricKey  = "hub_command_queue_overflow_total"
)

// CommandTopic routes one staged command to its engine entry point.
type CommandTopic string

const (
	CommandWelcome    CommandTopic = "welcome"
	CommandAction     CommandTopic = "action"
	CommandDisconnect CommandTopic = "disconnect"
	CommandDashboard  CommandTopic = "dashboard"
	CommandReset      CommandTopic = "reset"
)

// Command is one intent captured from a connection (or the admin HTTP
// surface) for processing on the next tick.
type Command struct {
	ConnID    string
	Topic     CommandTopic
	Prefs     *proto.Preferences
	Action    *proto.ActionRequest
	Dashboard *proto.DashboardRequest
	ResetSeed string
}

// commandQueue stores staged commands in a fixed-size ring. Safe for
// concurrent producers and the single loop consumer.
type commandQueue struct {
	mu      sync.Mutex
	data    []Command
	head    int
	tail    int
	count   int
	metrics telemetry.Metrics
}

func newCommandQueue(capacity int, metrics telemetry.Metrics) *commandQueue {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &commandQueue{
		data:    make([]Command, capacity),
		metrics: metrics,
	}
}

// push stages a command, returning false when the ring is full.
func (q *commandQueue) push(cmd Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		q.metrics.Add(commandQueueOverflowMetricKey, 1)
		return false
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	q.metrics.Store(commandQueueOccupancyMetricKey, uint64(q.count))
	return true
}

// drain returns every staged command in FIFO order and clears the ring.
func (q *commandQueue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	commands := make([]Command, q.count)
	for i := 0; i < q.count; i++ {
		commands[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	q.metrics.Store(commandQueueOccupancyMetricKey, 0)
	return commands
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
