package collab

import "sync"

// Transport 单个连接的出站通道，由 ws.Conn 实现。
// Send 只负责入队，不能阻塞；返回 false 表示消息被丢弃。
type Transport interface {
	Send(event string, payload any) bool
}

// Session 一条连接的状态，只由 Gateway 修改。
// noteID 为空表示 Closed；非空表示已在该笔记的房间里（Open）。
type Session struct {
	id string
	t  Transport

	mu     sync.Mutex
	userID string
	noteID string
}

func newSession(id string, t Transport) *Session {
	return &Session{id: id, t: t}
}

func (s *Session) ID() string { return s.id }

// State 返回当前打开的笔记和认证过的用户
func (s *Session) State() (noteID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noteID, s.userID
}

func (s *Session) open(noteID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noteID = noteID
	s.userID = userID
}

func (s *Session) close() (noteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	noteID = s.noteID
	s.noteID = ""
	return noteID
}

func (s *Session) send(event string, payload any) bool {
	return s.t.Send(event, payload)
}
