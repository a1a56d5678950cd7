package collab

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"notecollab/backend/internal/cache"
	"notecollab/backend/internal/notes"
)

// ContentResolver 先读缓存，未命中回源文档存储。
// 回源结果不会写回缓存：缓存只由成功的 contentChange 写入。
type ContentResolver struct {
	cache cache.ContentCache
	store notes.Store
	log   *zap.Logger
	// 同一笔记的并发回源只查一次库
	sf singleflight.Group
}

func NewContentResolver(c cache.ContentCache, store notes.Store, log *zap.Logger) *ContentResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentResolver{cache: c, store: store, log: log}
}

func (r *ContentResolver) ResolveContent(ctx context.Context, noteID string) (string, error) {
	var content string
	hit, err := r.cache.Get(ctx, noteID, &content)
	if err != nil {
		// 缓存不可用时降级为直接读库
		r.log.Warn("content cache read failed", zap.String("note", noteID), zap.Error(err))
	} else if hit {
		return content, nil
	}

	v, err, _ := r.sf.Do(noteID, func() (any, error) {
		n, err := r.store.FindOne(ctx, noteID)
		if err != nil {
			return "", err
		}
		return n.Content, nil
	})
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New("internal type error")
	}
	return s, nil
}
