package cache

import "fmt"

// 键语义：
// - contentKey(noteID): 笔记内容（String，JSON 序列化，带固定 TTL）
//
// 用 {} 包住 noteID，集群模式下同一笔记的键落在同一个 slot

const (
	keyContentFmt = "note:content:{%s}" // String JSON with TTL
)

func contentKey(noteID string) string { return fmt.Sprintf(keyContentFmt, noteID) }
