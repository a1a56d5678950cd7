package notes

import (
	"context"
	"errors"
	"slices"
)

// MaxContentLength 是单篇笔记内容允许的字符数上限（不含）。
const MaxContentLength = 25000

var (
	ErrNoteNotFound  = errors.New("note not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicate     = errors.New("note already exists")
	ErrAlreadyMember = errors.New("user already has access")
	ErrOwnerRequired = errors.New("owner cannot be removed")
)

// Note 是文档存储中的笔记，本服务只引用不拥有。
type Note struct {
	NoteID       string
	Name         string
	Description  string
	Content      string
	OwnerID      string
	AllowedUsers []string
}

func (n *Note) Allows(userID string) bool {
	return userID != "" && slices.Contains(n.AllowedUsers, userID)
}

// Store 文档存储的协作接口。
type Store interface {
	FindOne(ctx context.Context, noteID string) (*Note, error)
	UpdateContent(ctx context.Context, noteID string, content string) error

	Create(ctx context.Context, note *Note) error
	Delete(ctx context.Context, noteID string) error
	AddAllowedUser(ctx context.Context, noteID, userID string) error
	RemoveAllowedUser(ctx context.Context, noteID, userID string) error
}

// UserDirectory 只被笔记管理接口使用（按邮箱查 userId）。
type UserDirectory interface {
	FindOne(ctx context.Context, email string) (string, error)
}
