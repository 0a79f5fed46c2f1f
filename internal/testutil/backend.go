// Package testutil provides a fake POS backend for tests: canned REST
// responses, recorded order status updates and a push endpoint.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// OrdersPushPath is where the fake backend serves the order push channel.
const OrdersPushPath = "/api/ws/orders"

// StatusUpdate is a recorded PUT /orders/{id}/status call.
type StatusUpdate struct {
	OrderID         string
	Status          string `json:"status"`
	PaymentVerified bool   `json:"payment_verified"`
	Authorization   string
}

type response struct {
	code int
	body string
}

// Backend is an httptest server imitating the POS API.
type Backend struct {
	Server *httptest.Server

	upgrader websocket.Upgrader

	mu        sync.Mutex
	responses map[string]response
	calls     map[string]int
	updates   []StatusUpdate
	conns     map[*websocket.Conn]struct{}
	pushDials int
}

// NewBackend starts a fake backend that is shut down when t ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		responses: make(map[string]response),
		calls:     make(map[string]int),
		conns:     make(map[*websocket.Conn]struct{}),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ws/orders", b.servePush)
	api.HandleFunc("/orders/{id}/status", b.updateStatus).Methods(http.MethodPut)
	api.PathPrefix("/").HandlerFunc(b.serveCanned)

	b.Server = httptest.NewServer(router)
	t.Cleanup(b.Close)
	return b
}

// BaseURL returns the REST base URL including the /api prefix.
func (b *Backend) BaseURL() string {
	return b.Server.URL + "/api"
}

// PushURL returns the ws:// URL of the order push channel.
func (b *Backend) PushURL() string {
	return "ws" + strings.TrimPrefix(b.Server.URL, "http") + OrdersPushPath
}

// SetJSON serves body with status 200 for method GET on path (relative to /api).
func (b *Backend) SetJSON(path, body string) {
	b.SetResponse(path, http.StatusOK, body)
}

// SetResponse serves body with code for any method on path.
func (b *Backend) SetResponse(path string, code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[normalize(path)] = response{code: code, body: body}
}

// Calls returns how many requests hit path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[normalize(path)]
}

// StatusUpdates returns the recorded order status updates.
func (b *Backend) StatusUpdates() []StatusUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StatusUpdate(nil), b.updates...)
}

// Connections returns the number of open push connections.
func (b *Backend) Connections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// PushDials returns how many push connections were accepted in total.
func (b *Backend) PushDials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pushDials
}

// Broadcast sends msg as a text frame to every push connection.
func (b *Backend) Broadcast(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}
}

// DropConnections closes every push socket without a close frame.
func (b *Backend) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		_ = conn.NetConn().Close()
	}
}

// CloseConnections closes every push socket with a normal closure frame.
func (b *Backend) CloseConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.conns {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"))
	}
}

// Close drops all push connections and stops the server.
func (b *Backend) Close() {
	b.DropConnections()
	b.Server.Close()
}

func (b *Backend) servePush(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.pushDials++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Backend) updateStatus(w http.ResponseWriter, r *http.Request) {
	var upd StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"detail":"invalid body"}`)
		return
	}
	upd.OrderID = mux.Vars(r)["id"]
	upd.Authorization = r.Header.Get("Authorization")

	path := normalize(r.URL.Path)
	b.mu.Lock()
	b.calls[path]++
	b.updates = append(b.updates, upd)
	resp, ok := b.responses[path]
	b.mu.Unlock()

	if ok {
		writeJSON(w, resp.code, resp.body)
		return
	}
	writeJSON(w, http.StatusOK, `{"message":"Order status updated"}`)
}

func (b *Backend) serveCanned(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	b.mu.Lock()
	b.calls[path]++
	resp, ok := b.responses[path]
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, `{"detail":"Not Found"}`)
		return
	}
	writeJSON(w, resp.code, resp.body)
}

// normalize maps "/api/orders" and "orders" to "/orders".
func normalize(path string) string {
	path = strings.TrimPrefix(path, "/api")
	return "/" + strings.Trim(path, "/")
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
