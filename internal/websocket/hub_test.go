package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/webrana-dripmail-backend/internal/models"
)

func newTestClient(hub *Hub, tenantID uint) *Client {
	return &Client{
		hub:      hub,
		tenantID: tenantID,
		send:     make(chan []byte, 8),
	}
}

func receiveFrame(t *testing.T, client *Client) *WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var frame WSMessage
		require.NoError(t, json.Unmarshal(data, &frame))
		return &frame
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func assertNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func inboundMessage(tenantID, accountID uint) *models.InboundMessage {
	return &models.InboundMessage{
		ID:          42,
		TenantID:    tenantID,
		AccountID:   accountID,
		SenderEmail: "jane@lead.test",
		Subject:     "Re: Hello",
		Snippet:     "Sounds good",
		ReceivedAt:  time.Now().UTC(),
	}
}

func TestHubDeliversToSubscriber(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register(client)
	hub.Subscribe(client, 7)

	hub.NotifyInbound(inboundMessage(1, 7))

	frame := receiveFrame(t, client)
	assert.Equal(t, MessageTypeNewInbound, frame.Type)
	assert.Equal(t, uint(7), frame.AccountID)
}

func TestHubSkipsOtherAccounts(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register(client)
	hub.Subscribe(client, 7)

	hub.NotifyInbound(inboundMessage(1, 8))

	assertNoFrame(t, client)
}

func TestHubEnforcesTenantOnBroadcast(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	// Tenant 2 subscribes to tenant 1's account id.
	intruder := newTestClient(hub, 2)
	hub.Register(intruder)
	hub.Subscribe(intruder, 7)

	owner := newTestClient(hub, 1)
	hub.Register(owner)
	hub.Subscribe(owner, 7)

	hub.NotifyInbound(inboundMessage(1, 7))

	frame := receiveFrame(t, owner)
	assert.Equal(t, MessageTypeNewInbound, frame.Type)
	assertNoFrame(t, intruder)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register(client)
	hub.Subscribe(client, 7)
	hub.Unsubscribe(client, 7)

	hub.NotifyInbound(inboundMessage(1, 7))

	assertNoFrame(t, client)
}

func TestClientSubscribeMessageRequiresAccountID(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := newTestClient(hub, 1)
	hub.Register(client)

	client.handleMessage([]byte(`{"type":"subscribe"}`))

	frame := receiveFrame(t, client)
	assert.Equal(t, MessageTypeError, frame.Type)
	assert.Contains(t, frame.Error, "account_id")
}

func TestClientRejectsUnknownMessageType(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, 1)

	client.handleMessage([]byte(`{"type":"bogus"}`))

	frame := receiveFrame(t, client)
	assert.Equal(t, MessageTypeError, frame.Type)
}

func TestSecureUpgraderOriginChecks(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{"https://app.example.com"}, nil)

	allowed := httptest.NewRequest("GET", "/ws", nil)
	allowed.Header.Set("Origin", "https://app.example.com")
	assert.True(t, upgrader.CheckOrigin(allowed))

	sameOrigin := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, upgrader.CheckOrigin(sameOrigin))

	denied := httptest.NewRequest("GET", "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, upgrader.CheckOrigin(denied))
}
