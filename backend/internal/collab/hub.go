package collab

import (
	"sync"

	"go.uber.org/zap"
)

// Hub 房间注册表 + 广播分发。
// 房间按 noteID 懒创建，成员为空时从表里删掉。
type Hub struct {
	log *zap.Logger

	// 保护下面三个 map；广播时先在读锁下拷贝目标，再在锁外投递
	mu sync.RWMutex
	// sessionID -> session（所有在线连接）
	sessions map[string]*Session
	// noteID -> set of sessionID
	rooms map[string]map[string]*Session
	// sessionID -> noteID，一个连接同一时刻只跟踪一个房间
	memberOf map[string]string
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		memberOf: make(map[string]string),
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID()] = s
}

// Unregister 断开时调用，同时退出房间，返回离开的房间（可能为空）
func (h *Hub) Unregister(sessionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.leaveLocked(sessionID)
	delete(h.sessions, sessionID)
	return room
}

// Join 幂等；若连接已在别的房间，先退出旧房间
func (h *Hub) Join(roomID, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	if cur, ok := h.memberOf[sessionID]; ok && cur != roomID {
		h.leaveLocked(sessionID)
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Session)
	}
	h.rooms[roomID][sessionID] = s
	h.memberOf[sessionID] = roomID
	return true
}

func (h *Hub) Leave(sessionID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(sessionID)
}

func (h *Hub) leaveLocked(sessionID string) string {
	roomID, ok := h.memberOf[sessionID]
	if !ok {
		return ""
	}
	delete(h.memberOf, sessionID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	return roomID
}

// Members 返回房间内的 sessionID
func (h *Hub) Members(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) SendTo(sessionID, event string, payload any) bool {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.deliver(s, event, payload)
}

// BroadcastExcluding 发给房间内除 senderID 以外的所有连接，返回成功入队数
func (h *Hub) BroadcastExcluding(roomID, senderID, event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.rooms[roomID]))
	for id, s := range h.rooms[roomID] {
		if id == senderID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return h.fanOut(targets, event, payload)
}

func (h *Hub) BroadcastRoom(roomID, event string, payload any) int {
	return h.BroadcastExcluding(roomID, "", event, payload)
}

// BroadcastGlobal 发给所有在线连接，不区分房间
func (h *Hub) BroadcastGlobal(event string, payload any) int {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	return h.fanOut(targets, event, payload)
}

func (h *Hub) fanOut(targets []*Session, event string, payload any) int {
	sent := 0
	for _, s := range targets {
		if h.deliver(s, event, payload) {
			sent++
		}
	}
	return sent
}

func (h *Hub) deliver(s *Session, event string, payload any) bool {
	if s.send(event, payload) {
		return true
	}
	// 慢连接的发送队列满了，丢弃这条消息
	h.log.Warn("outbound queue full, message dropped",
		zap.String("session", s.ID()), zap.String("event", event))
	return false
}
