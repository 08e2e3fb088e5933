package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/door-access-manager/backend/internal/api/middleware"
	ws "github.com/door-access-manager/backend/internal/websocket"
	"github.com/door-access-manager/backend/internal/workflow"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from a different origin than the API
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to
// WebSocket. A connection may only follow workflows its operator owns.
func WebSocketUpgrade(hub *ws.Hub, reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.Session(r.Context())
		client := ws.NewClient(hub, func(workflowID string) bool {
			_, err := reg.Get(sess, workflowID)
			return err == nil
		})
		if id := r.URL.Query().Get("workflow_id"); id != "" && !client.Subscribe(id) {
			writeError(w, r, workflow.ErrNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.Register(client)

		// Replies to commands share the write pump with hub events
		replies := make(chan []byte, 16)

		go writePump(conn, client, replies)
		go readPump(conn, client, hub, replies)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client, replies <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client commands until the connection drops.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub, replies chan<- []byte) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		reply, err := ws.HandleCommand(client, message).JSON()
		if err != nil {
			continue
		}
		select {
		case replies <- reply:
		default:
			log.Println("WebSocket reply buffer full, dropping reply")
		}
	}
}
