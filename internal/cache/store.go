package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读取与晋升。磁盘布局遵循：
//
//	<CacheDir>/<itemID>.mp3    # 完整的转码产物
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Exists 返回 itemID 对应的产物文件是否存在且可读。
	Exists(ctx context.Context, itemID string) bool

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, itemID string) (*ReadResult, error)

	// EntryPath 返回 itemID 对应的规范缓存路径，仅由 itemID 与根目录推导。
	EntryPath(itemID string) (string, error)

	// Promote 将暂存文件原子性地晋升为 itemID 的正式产物。实现需通过 rename
	// 保证外部读者永远看不到半成品文件；并发晋升由条目锁串行化，后写者胜出。
	Promote(ctx context.Context, stagingPath, itemID string) (*Entry, error)

	// Remove 删除产物文件，通常用于测试或人工清理。
	Remove(ctx context.Context, itemID string) error
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	ItemID    string `json:"item_id"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于处理层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// StoreError describes a failed filesystem operation against the artifact
// store, carrying the item id for log correlation.
type StoreError struct {
	Op     string
	ItemID string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
