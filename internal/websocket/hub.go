// Package websocket pushes newly synced inbound messages to connected
// clients. Clients subscribe to mail accounts; broadcasts are scoped to
// the client's tenant, a subscription to another tenant's account id
// delivers nothing.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeNewInbound  MessageType = "new_inbound"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket frame in both directions.
type WSMessage struct {
	Type      MessageType `json:"type"`
	AccountID uint        `json:"account_id,omitempty"`
	Message   interface{} `json:"message,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// InboundPayload is the notification body for a newly synced message.
type InboundPayload struct {
	ID          uint      `json:"id"`
	AccountID   uint      `json:"account_id"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}

// Hub maintains the set of active clients and routes notifications.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Account subscriptions: accountID -> set of clients
	subscriptions map[uint]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to an account
	subscribe chan *subscriptionRequest

	// Unsubscribe from an account
	unsubscribeAccount chan *subscriptionRequest

	// Broadcast to account subscribers
	broadcast chan *broadcastMessage

	mu sync.RWMutex

	logger *slog.Logger
}

type subscriptionRequest struct {
	client    *Client
	accountID uint
}

type broadcastMessage struct {
	tenantID  uint
	accountID uint
	message   []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		subscriptions:      make(map[uint]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		subscribe:          make(chan *subscriptionRequest),
		unsubscribeAccount: make(chan *subscriptionRequest),
		broadcast:          make(chan *broadcastMessage, 256),
		logger:             logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered", slog.Uint64("tenant_id", uint64(client.tenantID)))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for accountID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, accountID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.accountID] == nil {
				h.subscriptions[req.accountID] = make(map[*Client]bool)
			}
			h.subscriptions[req.accountID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to account", slog.Uint64("account_id", uint64(req.accountID)))
			}

		case req := <-h.unsubscribeAccount:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.accountID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.accountID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.accountID]
			for client := range subscribers {
				// Tenant scoping is enforced here, not at subscribe
				// time: the hub never trusts a client-supplied id.
				if client.tenantID != msg.tenantID {
					continue
				}
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to an account's notifications
func (h *Hub) Subscribe(client *Client, accountID uint) {
	h.subscribe <- &subscriptionRequest{client: client, accountID: accountID}
}

// Unsubscribe removes a client's account subscription
func (h *Hub) Unsubscribe(client *Client, accountID uint) {
	h.unsubscribeAccount <- &subscriptionRequest{client: client, accountID: accountID}
}

// NotifyInbound broadcasts a newly stored inbound message to the
// owning tenant's subscribers. Implements the sync worker's notifier.
func (h *Hub) NotifyInbound(message *models.InboundMessage) {
	payload := &InboundPayload{
		ID:          message.ID,
		AccountID:   message.AccountID,
		SenderEmail: message.SenderEmail,
		SenderName:  message.SenderName,
		Subject:     message.Subject,
		Snippet:     message.Snippet,
		ReceivedAt:  message.ReceivedAt,
	}

	frame := WSMessage{
		Type:      MessageTypeNewInbound,
		AccountID: message.AccountID,
		Message:   payload,
	}

	data, err := json.Marshal(frame)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{
		tenantID:  message.TenantID,
		accountID: message.AccountID,
		message:   data,
	}:
	default:
		// Broadcast buffer full; notifications are best effort.
	}
}
