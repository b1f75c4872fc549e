package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/gofiber/fiber/v2"
	"github.com/mudler/xlog"
	"github.com/valyala/fasthttp"
)

type (
	// Listener is the receiving end of a stream.
	Listener interface {
		ID() string
		Chan() chan Envelope
		// Accepts reports whether the listener wants messages of a run.
		Accepts(runID string) bool
	}

	// Envelope is anything that can be written to an event stream.
	Envelope interface {
		String() string
		RunID() string
	}
)

type Client struct {
	id    string
	runID string
	ch    chan Envelope
}

// NewClient returns a listener. A non-empty runID restricts it to the
// messages of that run.
func NewClient(id, runID string) *Client {
	return &Client{
		id:    id,
		runID: runID,
		ch:    make(chan Envelope, 50),
	}
}

func (c *Client) ID() string          { return c.id }
func (c *Client) Chan() chan Envelope { return c.ch }

func (c *Client) Accepts(runID string) bool {
	return c.runID == "" || c.runID == runID
}

// Message is a single server-sent event.
type Message struct {
	Event string
	Run   string
	Time  time.Time
	Data  string
}

func NewMessage(data string) *Message {
	return &Message{
		Data: data,
		Time: time.Now(),
	}
}

// NewEventMessage encodes a workflow event as JSON, named after its type.
func NewEventMessage(e types.Event) (*Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	m := NewMessage(string(b))
	m.Event = string(e.Type)
	m.Run = e.RunID
	return m, nil
}

func (m *Message) String() string {
	sb := strings.Builder{}

	if m.Event != "" {
		sb.WriteString(fmt.Sprintf("event: %s\n", m.Event))
	}
	sb.WriteString(fmt.Sprintf("data: %v\n\n", m.Data))

	return sb.String()
}

func (m *Message) RunID() string { return m.Run }

func (m *Message) WithEvent(event string) *Message {
	m.Event = event
	return m
}

// KeepAliveInterval is how often an idle stream gets a comment line, which
// is also how disconnected clients are noticed.
var KeepAliveInterval = 15 * time.Second

// Manager fans workflow events out to connected clients. It implements
// types.Observer so it can be handed to a workflow directly.
type Manager struct {
	clients        sync.Map
	shards         []chan Envelope
	messageHistory *history
}

var _ types.Observer = (*Manager)(nil)

// NewManager starts workerPoolSize broadcasting goroutines and keeps the
// last historySize messages for clients that connect late. Each run is
// pinned to one worker, so its events reach clients in order.
func NewManager(workerPoolSize, historySize int) *Manager {
	if workerPoolSize < 1 {
		workerPoolSize = 1
	}
	manager := &Manager{
		shards:         make([]chan Envelope, workerPoolSize),
		messageHistory: newHistory(historySize),
	}
	for i := range manager.shards {
		manager.shards[i] = make(chan Envelope, 100)
	}

	manager.startWorkers()

	return manager
}

func (manager *Manager) shard(runID string) chan Envelope {
	h := fnv.New32a()
	h.Write([]byte(runID))
	return manager.shards[h.Sum32()%uint32(len(manager.shards))]
}

// Observe queues e for broadcasting. It drops the event instead of
// blocking the workflow when the queue is full.
func (manager *Manager) Observe(e types.Event) {
	m, err := NewEventMessage(e)
	if err != nil {
		xlog.Error("Could not encode workflow event", "run", e.RunID, "error", err)
		return
	}

	select {
	case manager.shard(m.RunID()) <- m:
	default:
		xlog.Warn("Event stream is congested, dropping event", "run", e.RunID, "type", e.Type)
	}
}

// Send queues message, waiting for room if needed.
func (manager *Manager) Send(message Envelope) {
	manager.shard(message.RunID()) <- message
}

// Handle streams messages to cl until the client goes away.
func (manager *Manager) Handle(c *fiber.Ctx, cl Listener) {
	ctx := c.Context()

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Cache-Control")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	manager.messageHistory.Send(cl)
	manager.register(cl)

	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer manager.unregister(cl.ID())

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		keepAlive := time.NewTicker(KeepAliveInterval)
		defer keepAlive.Stop()

		for {
			var payload string
			select {
			case msg := <-cl.Chan():
				payload = msg.String()
			case <-keepAlive.C:
				payload = ": keep-alive\n\n"
			}
			if _, err := fmt.Fprint(w, payload); err != nil {
				return
			}
			// a failed flush means the client disconnected
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
}

func (manager *Manager) Clients() []string {
	var clients []string
	manager.clients.Range(func(key, value any) bool {
		id, ok := key.(string)
		if ok {
			clients = append(clients, id)
		}
		return true
	})
	return clients
}

func (manager *Manager) startWorkers() {
	for _, shard := range manager.shards {
		go func(queue chan Envelope) {
			for message := range queue {
				manager.messageHistory.Add(message)
				manager.deliver(message)
			}
		}(shard)
	}
}

func (manager *Manager) deliver(message Envelope) {
	manager.clients.Range(func(key, value any) bool {
		client, ok := value.(Listener)
		if !ok || !client.Accepts(message.RunID()) {
			return true
		}
		select {
		case client.Chan() <- message:
		default:
			// slow client, drop
		}
		return true
	})
}

func (manager *Manager) register(client Listener) {
	manager.clients.Store(client.ID(), client)
}

func (manager *Manager) unregister(clientID string) {
	manager.clients.Delete(clientID)
}

type history struct {
	sync.Mutex
	messages []Envelope
	maxSize  int
}

func newHistory(maxSize int) *history {
	return &history{
		messages: []Envelope{},
		maxSize:  maxSize,
	}
}

func (h *history) Add(message Envelope) {
	h.Lock()
	defer h.Unlock()
	if h.maxSize <= 0 {
		return
	}
	h.messages = append(h.messages, message)
	if len(h.messages) > h.maxSize {
		h.messages = h.messages[len(h.messages)-h.maxSize:]
	}
}

// Send replays the history to c without blocking on a full channel.
func (h *history) Send(c Listener) {
	h.Lock()
	defer h.Unlock()
	for _, msg := range h.messages {
		if !c.Accepts(msg.RunID()) {
			continue
		}
		select {
		case c.Chan() <- msg:
		default:
			return
		}
	}
}
