package mission

import (
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// EventType identifies a wire event broadcast to connected WebSocket
// clients. Values match the event names the HTTP/WS surface documents.
type EventType string

const (
	EventLog             EventType = "log"
	EventAgentStatus      EventType = "agent:status"
	EventAgentUpdate      EventType = "agent:update"
	EventAgentCreate      EventType = "agent:create"
	EventAgentMessage     EventType = "agent:message"
	EventOversightNew     EventType = "oversight:new"
	EventOversightDecided EventType = "oversight:decided"
	EventEngineHealth     EventType = "engine:health"
	EventEngineKill       EventType = "engine:kill"
	EventEngineShutdown   EventType = "engine:shutdown"
)

// Event is one broadcast message: a typed envelope around whatever
// payload the event carries.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Broadcaster fans out Events to every subscriber. A subscriber that falls
// behind misses events, but stays subscribed, rather than blocking the
// emitter — an event channel
// is a best-effort live feed, not a durable log (that's MissionLog).
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber channel. Callers must call the
// returned unsubscribe function when done listening.
func (b *Broadcaster) Subscribe(buffer int) (ch chan Event, unsubscribe func()) {
	ch = make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// Emit broadcasts an event to every current subscriber. A subscriber
// whose buffer is full is skipped for this event rather than blocking
// the mission runner on a slow UI client.
func (b *Broadcaster) Emit(eventType EventType, payload any) {
	event := Event{Type: eventType, Timestamp: time.Now(), Payload: payload}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Log broadcasts a log event built from the given MissionLog entry.
func (b *Broadcaster) Log(entry models.MissionLog) {
	b.Emit(EventLog, entry)
}

// AgentStatus broadcasts an agent:status event.
func (b *Broadcaster) AgentStatus(agentID string, status models.AgentStatus) {
	b.Emit(EventAgentStatus, map[string]any{"agent_id": agentID, "status": status})
}

// OversightNew broadcasts an oversight:new event for a freshly submitted entry.
func (b *Broadcaster) OversightNew(entry models.OversightEntry) {
	b.Emit(EventOversightNew, entry)
}

// OversightDecided broadcasts an oversight:decided event for a resolved entry.
func (b *Broadcaster) OversightDecided(entry models.OversightEntry) {
	b.Emit(EventOversightDecided, entry)
}

// EngineHealth broadcasts the periodic (every 5s) engine:health heartbeat.
func (b *Broadcaster) EngineHealth(activeMissions int) {
	b.Emit(EventEngineHealth, map[string]any{"active_missions": activeMissions, "at": time.Now()})
}

// EngineKill broadcasts engine:kill when the operator fires the kill switch.
func (b *Broadcaster) EngineKill() {
	b.Emit(EventEngineKill, nil)
}

// EngineShutdown broadcasts engine:shutdown when graceful shutdown begins.
func (b *Broadcaster) EngineShutdown() {
	b.Emit(EventEngineShutdown, nil)
}
