package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	ev, err := ParseMessage([]byte(`{"type":"new_order","order_number":1024,"total_amount":"125000"}`))
	require.NoError(t, err)
	no, ok := ev.(*NewOrderEvent)
	require.True(t, ok)
	assert.Equal(t, "1024", no.OrderNumber.String())
	assert.Equal(t, 125000.0, float64(no.TotalAmount))

	ev, err = ParseMessage([]byte(`{"type":"order_status_update","status":"cooking"}`))
	require.NoError(t, err)
	su, ok := ev.(*OrderStatusEvent)
	require.True(t, ok)
	assert.Equal(t, "cooking", su.Status)
	assert.Empty(t, su.OrderID)

	ev, err = ParseMessage([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", ev.EventType())

	for _, bad := range []string{``, `[]`, `{"status":"ready"}`, `{"type":"new_order","total_amount":{}}`} {
		_, err := ParseMessage([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedMessage, bad)
	}
}

func TestReconnectPolicyDelay(t *testing.T) {
	p := DefaultReconnectPolicy()
	mid := func() float64 { return 0.5 }

	assert.Equal(t, 3*time.Second, p.Delay(0, mid))
	assert.Equal(t, 6*time.Second, p.Delay(1, mid))
	assert.Equal(t, 24*time.Second, p.Delay(3, mid))
	assert.Equal(t, 30*time.Second, p.Delay(4, mid))
	assert.Equal(t, 30*time.Second, p.Delay(50, mid))

	assert.Equal(t, 2700*time.Millisecond, p.Delay(0, func() float64 { return 0 }))
	assert.Equal(t, 3150*time.Millisecond, p.Delay(0, func() float64 { return 0.75 }))

	fixed := FixedReconnectPolicy(3 * time.Second)
	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 3*time.Second, fixed.Delay(attempt, nil))
	}
}

func TestURLFromBase(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8001/api", "ws://localhost:8001/api/ws/orders"},
		{"https://pos.example.com/api/", "wss://pos.example.com/api/ws/orders"},
		{"wss://pos.example.com", "wss://pos.example.com/api/ws/orders"},
	}
	for _, tt := range tests {
		got, err := URLFromBase(tt.base, "/api/ws/orders")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := URLFromBase("ftp://pos.example.com", "/api/ws/orders")
	assert.Error(t, err)
	_, err = URLFromBase("http:///api", "/api/ws/orders")
	assert.Error(t, err)
}

func TestFormatRupiahAndToast(t *testing.T) {
	assert.Equal(t, "50.000", FormatRupiah(50000))
	assert.Equal(t, "1.250.000", FormatRupiah(1250000))

	toast := NewOrderToast(&NewOrderEvent{OrderNumber: "ORD-7", TotalAmount: 75000})
	assert.Equal(t, "New order received", toast.Title)
	assert.Equal(t, "Order #ORD-7 - Rp 75.000", toast.Description)
	assert.Equal(t, 5*time.Second, toast.Duration)
}

func TestWebSocketDialerCloseClassification(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"new_order"}`))
		if r.URL.Query().Get("abrupt") != "" {
			return
		}
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, err := WebSocketDialer{}.Dial(context.Background(), base, nil)
	require.NoError(t, err)
	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new_order"}`, string(data))
	_, err = conn.ReadMessage()
	assert.True(t, IsCleanClose(err), "normal closure frame: %v", err)
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())

	conn, err = WebSocketDialer{}.Dial(context.Background(), base+"?abrupt=1", nil)
	require.NoError(t, err)
	_, err = conn.ReadMessage()
	require.NoError(t, err)
	_, err = conn.ReadMessage()
	assert.False(t, IsCleanClose(err), "dropped socket: %v", err)
	_ = conn.Close()
}
