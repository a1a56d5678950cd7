package collab

import "time"

const EventTypeContentUpdated = "NOTE_CONTENT_UPDATED"

// NoteEvent 已被存储接受的内容变更，发往 Kafka 供下游消费
type NoteEvent struct {
	EventType string    `json:"eventType"` // 固定 "NOTE_CONTENT_UPDATED"
	NoteID    string    `json:"noteId"`
	AuthorID  string    `json:"authorId"`
	SessionID string    `json:"sessionId"`
	Length    int       `json:"length"` // 字符数
	Content   string    `json:"content"`
	AppliedAt time.Time `json:"appliedAt"`
}
