package collab

import (
	"errors"
	"fmt"

	"notecollab/backend/internal/auth"
	"notecollab/backend/internal/notes"
)

// Kind 失败分类，决定日志级别和处理方式
type Kind int

const (
	KindAuthentication Kind = iota
	KindAuthorization
	KindValidation
	KindPersistence
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var (
	ErrContentTooLong = errors.New("content too long")
	ErrNoteNotOpen    = errors.New("note not opened by this session")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrBadPayload     = errors.New("malformed payload")
)

// Failure 处理器返回的显式失败结果，由 policy 统一决定丢弃还是上报
type Failure struct {
	Kind   Kind
	Op     string
	NoteID string
	Err    error
}

func (f *Failure) Error() string {
	if f.NoteID != "" {
		return fmt.Sprintf("%s %s (note=%s): %v", f.Op, f.Kind, f.NoteID, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind Kind, op, noteID string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, NoteID: noteID, Err: err}
}

// classify 把 Guard/Store 返回的错误映射为失败分类
func classify(op, noteID string, err error) *Failure {
	switch {
	case errors.Is(err, auth.ErrAuthentication):
		return fail(KindAuthentication, op, noteID, err)
	case errors.Is(err, auth.ErrAuthorization):
		return fail(KindAuthorization, op, noteID, err)
	case errors.Is(err, notes.ErrNoteNotFound):
		return fail(KindNotFound, op, noteID, err)
	default:
		// 超时同样按存储失败处理
		return fail(KindPersistence, op, noteID, err)
	}
}
