package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/chunkstream/api/internal/model"
)

// Client is one WebSocket subscriber watching a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job progress out to WebSocket subscribers, grouped by job ID.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastProgress pushes a progress update to a job's subscribers.
func (h *Hub) BroadcastProgress(jobID string, status model.JobStatus, progress int, stage string) {
	h.send(jobID, model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Status:   status,
		Progress: progress,
		Stage:    stage,
	})
}

// BroadcastComplete pushes the terminal result to a job's subscribers.
func (h *Hub) BroadcastComplete(jobID string, result *model.JobResult) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError pushes a terminal failure to a job's subscribers.
func (h *Hub) BroadcastError(jobID, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		JobID:   jobID,
		Code:    code,
		Message: message,
	})
}

func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("hub: marshal message for job %s: %v", jobID, err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{jobID: jobID, message: data}:
	default:
		log.Printf("hub: broadcast buffer full, dropping message for job %s", jobID)
	}
}

// HandleConnection pumps messages to one subscriber until it disconnects.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, 64),
	}
	h.register <- client
	defer func() {
		h.unregister <- client
		conn.Close()
	}()

	// Reader goroutine detects client disconnects.
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
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
