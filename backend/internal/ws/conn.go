package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"notecollab/backend/internal/collab"
)

const (
	sendQueueSize = 32
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameSize  = 1 << 20
)

// Conn 一条 WebSocket 连接，实现 collab.Transport。
// 读循环顺序分发事件，写循环独占底层连接的写操作。
type Conn struct {
	ws  *websocket.Conn
	gw  *collab.Gateway
	log *zap.Logger

	// send 队列不关闭：广播方随时可能入队，关闭会和它们竞争
	send chan ServerMessage
	done chan struct{}
	once sync.Once
}

func NewConn(ws *websocket.Conn, gw *collab.Gateway, log *zap.Logger) *Conn {
	return &Conn{
		ws:   ws,
		gw:   gw,
		log:  log,
		send: make(chan ServerMessage, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send 非阻塞入队；连接已关闭或队列满时返回 false
func (c *Conn) Send(event string, payload any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ServerMessage{Event: event, Data: payload}:
		return true
	case <-c.done:
		return false
	default:
		// 如果队列满了，则丢弃消息
		return false
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) readLoop(s *collab.Session) {
	defer c.shutdown()

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("read json error", zap.String("session", s.ID()), zap.Error(err))
			}
			return
		}
		c.gw.Dispatch(s, msg.Event, msg.Data)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Info("write json error", zap.String("event", msg.Event), zap.Error(err))
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}
