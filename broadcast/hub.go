package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-skywatch/types"
)

// Outbound event kinds.
const (
	EventObjectChange       = "objectChange"
	EventObjectDelete       = "objectDelete"
	EventChatMessage        = "chatMessage"
	EventRemoveSpecialTrail = "removeSpecialTrail"
)

// Inbound event kinds.
const (
	eventApproveClassification = "approveClassification"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Envelope wraps every event on the wire.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type approvePayload struct {
	ObjectData types.ObjectData `json:"objectData"`
}

type removeTrailPayload struct {
	ObjectID string `json:"objectId"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of active connections and fans events out to all of
// them. Delivery is best-effort: a client that cannot keep up is dropped
// rather than blocking dispatch to the others.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	// onApprove routes inbound approval events into the classification
	// workflow. Set once at wiring time.
	onApprove func(types.ObjectData)
}

// Client represents one WebSocket subscriber.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// NewHub creates a new fan-out hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetApproveHandler registers the classification-approval handler.
func (h *Hub) SetApproveHandler(handler func(types.ObjectData)) {
	h.onApprove = handler
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %s connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %s disconnected", client.ID)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// publish marshals and queues an event for all subscribers.
func (h *Hub) publish(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s payload: %v", event, err)
		return
	}
	raw, err := json.Marshal(Envelope{Event: event, Payload: data})
	if err != nil {
		log.Printf("Failed to marshal %s envelope: %v", event, err)
		return
	}
	h.broadcast <- raw
}

// EmitObjectChange broadcasts a changed object to all subscribers.
func (h *Hub) EmitObjectChange(object types.ObjectData) {
	h.publish(EventObjectChange, object)
}

// EmitObjectDelete broadcasts an object removal.
func (h *Hub) EmitObjectDelete(objectID string) {
	h.publish(EventObjectDelete, gin.H{"id": objectID})
}

// EmitChatMessage broadcasts an operator notification.
func (h *Hub) EmitChatMessage(message types.SystemMessage) {
	h.publish(EventChatMessage, message)
}

// HandleWebSocket upgrades an HTTP request to a hub subscription.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// handleInbound routes a client-sent envelope.
func (h *Hub) handleInbound(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Dropping malformed inbound event: %v", err)
		return
	}

	switch env.Event {
	case eventApproveClassification:
		var p approvePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("Dropping malformed approval payload: %v", err)
			return
		}
		log.Printf("Classification approval requested for object: %s", p.ObjectData.ID)
		if h.onApprove != nil {
			h.onApprove(p.ObjectData)
		}
	case EventRemoveSpecialTrail:
		var p removeTrailPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("Dropping malformed trail payload: %v", err)
			return
		}
		log.Printf("Remove special trail requested for object: %s", p.ObjectID)
		// Pure relay, no state change.
		h.publish(EventRemoveSpecialTrail, gin.H{"objectId": p.ObjectID})
	default:
		log.Printf("Ignoring unknown inbound event %q", env.Event)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Client %s read error: %v", c.ID, err)
			}
			return
		}
		c.Hub.handleInbound(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
