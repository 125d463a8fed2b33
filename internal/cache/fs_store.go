package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const artifactSuffix = ".mp3"

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &fileStore{
		basePath: basePath,
		absPath:  abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 串行化同一 itemID 的并发晋升，同时复用 absPath。
type fileStore struct {
	basePath string
	absPath  string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Exists(ctx context.Context, itemID string) bool {
	result, err := s.Get(ctx, itemID)
	if err != nil {
		return false
	}
	result.Reader.Close()
	return true
}

func (s *fileStore) Get(ctx context.Context, itemID string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.EntryPath(itemID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "stat", ItemID: itemID, Err: err}
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "open", ItemID: itemID, Err: err}
	}

	entry := Entry{
		ItemID:    itemID,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	return &ReadResult{
		Entry:  entry,
		Reader: f,
	}, nil
}

func (s *fileStore) EntryPath(itemID string) (string, error) {
	if err := validateItemID(itemID); err != nil {
		return "", err
	}
	return filepath.Join(s.absPath, itemID+artifactSuffix), nil
}

func (s *fileStore) Promote(ctx context.Context, stagingPath, itemID string) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.EntryPath(itemID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(itemID)
	defer unlock()

	info, err := os.Stat(stagingPath)
	if err != nil {
		return nil, &StoreError{Op: "promote", ItemID: itemID, Err: err}
	}

	// rename 在跨文件系统时返回 EXDEV（暂存目录可能位于 /tmp），此时降级为
	// “复制到缓存目录内的临时文件 + 同目录 rename”，保持对外的原子语义。
	if err := os.Rename(stagingPath, filePath); err != nil {
		if copyErr := s.promoteAcrossDevices(ctx, stagingPath, filePath); copyErr != nil {
			return nil, &StoreError{Op: "promote", ItemID: itemID, Err: copyErr}
		}
		_ = os.Remove(stagingPath)
	}

	entry := Entry{
		ItemID:    itemID,
		FilePath:  filePath,
		SizeBytes: info.Size(),
	}
	if final, err := os.Stat(filePath); err == nil {
		entry.SizeBytes = final.Size()
		entry.ModTime = final.ModTime()
	}
	return &entry, nil
}

func (s *fileStore) promoteAcrossDevices(ctx context.Context, stagingPath, filePath string) error {
	src, err := os.Open(stagingPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".promote-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, src)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) Remove(ctx context.Context, itemID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	filePath, err := s.EntryPath(itemID)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(itemID)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Op: "remove", ItemID: itemID, Err: err}
	}
	return nil
}

func (s *fileStore) lockEntry(itemID string) func() {
	s.mu.Lock()
	lock := s.locks[itemID]
	if lock == nil {
		lock = &entryLock{}
		s.locks[itemID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, itemID)
		}
		s.mu.Unlock()
	}
}

// validateItemID 拒绝包含路径分隔符或点号的 ID，防止逃出缓存根目录。
func validateItemID(itemID string) error {
	if itemID == "" {
		return errors.New("item id required")
	}
	if strings.ContainsAny(itemID, "/\\.") || strings.Contains(itemID, "..") {
		return fmt.Errorf("invalid item id: %s", itemID)
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
