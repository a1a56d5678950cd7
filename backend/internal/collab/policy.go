package collab

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// failurePolicy 处理器边界上唯一的失败出口。
// 所有分类都是记日志后丢弃，不向连接回发任何事件；
// 客户端只能通过收不到 noteOpened/contentUpdate 自行推断失败。
var failurePolicy = map[Kind]zapcore.Level{
	KindAuthentication: zapcore.WarnLevel,
	KindAuthorization:  zapcore.WarnLevel,
	KindValidation:     zapcore.InfoLevel,
	KindNotFound:       zapcore.InfoLevel,
	KindPersistence:    zapcore.ErrorLevel,
	KindInternal:       zapcore.ErrorLevel,
}

func (g *Gateway) drop(s *Session, f *Failure) {
	if f == nil {
		return
	}
	lvl, ok := failurePolicy[f.Kind]
	if !ok {
		lvl = zapcore.ErrorLevel
	}
	if ce := g.log.Check(lvl, "event dropped"); ce != nil {
		ce.Write(
			zap.String("op", f.Op),
			zap.Stringer("kind", f.Kind),
			zap.String("session", s.ID()),
			zap.String("note", f.NoteID),
			zap.Error(f.Err),
		)
	}
}
