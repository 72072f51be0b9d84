package websocket

import (
	"encoding/json"
	"time"

	"messenger/internal/app/notification"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// readPump consumes client frames until the connection fails. The only frame the
// gateway understands is {"event":"login","data":"<token>"}.
func (c *Client) readPump() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.hub.logger.Debugw("Ignoring malformed frame", "client_id", c.ID, "error", err)
			continue
		}
		if frame.Event != "login" {
			continue
		}
		var token string
		if err := json.Unmarshal(frame.Data, &token); err != nil || token == "" {
			c.hub.logger.Debugw("Ignoring login without token", "client_id", c.ID)
			continue
		}

		select {
		case c.hub.join <- join{client: c, room: notification.RoomFor(token)}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.hub.logger.Debugw("Write to client failed", "client_id", c.ID, "error", err)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
