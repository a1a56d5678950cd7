package ws

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"notecollab/backend/internal/collab"
)

type Manager struct {
	gw       *collab.Gateway
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewManager allowedOrigins 为空时只放行本地开发来源
func NewManager(gw *collab.Gateway, allowedOrigins []string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{gw: gw, log: log}
	m.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin(allowedOrigins)}
	return m
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
			return true
		}
		if slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
			return true
		}
		if len(allowed) == 0 {
			for _, p := range []string{"http://localhost", "http://127.0.0.1"} {
				if strings.HasPrefix(origin, p) {
					return true
				}
			}
		}
		return false
	}
}

// WebSocketConnect 升级连接后阻塞在读循环，返回时连接已断开
func (m *Manager) WebSocketConnect(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.log.Warn("websocket upgrade error",
			zap.String("origin", c.Request.Header.Get("Origin")), zap.Error(err))
		return
	}

	wsConn := NewConn(conn, m.gw, m.log)
	s := m.gw.Connect(wsConn)

	// 先启动写循环，确保后续写入 send 通道的消息可以被及时发送
	go wsConn.writeLoop()

	// 最后再进入读循环（阻塞至连接关闭）
	wsConn.readLoop(s)
	m.gw.Disconnect(s)
}
