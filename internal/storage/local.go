package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore 将上传文件保存在本地目录下的三个固定子目录中。
type LocalStore struct {
	root string
}

// NewLocalStore 创建本地存储并预建三个上传子目录。
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	for _, folder := range []string{FolderPdfs, FolderPdfTopics, FolderRefTopics} {
		if err := os.MkdirAll(filepath.Join(root, folder), 0o755); err != nil {
			return nil, fmt.Errorf("create upload folder %q: %w", folder, err)
		}
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(folder, filename string) (string, error) {
	if !AllowedFolder(folder) {
		return "", fmt.Errorf("folder %q is not allowed", folder)
	}
	cleaned := SanitizeFilename(filename)
	if cleaned == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.root, folder, cleaned), nil
}

// Save 将内容写入目标文件。
func (s *LocalStore) Save(_ context.Context, folder, filename string, reader io.Reader, _ int64, _ string) error {
	target, err := s.path(folder, filename)
	if err != nil {
		return err
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %q: %w", target, err)
	}
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", target, err)
	}
	return nil
}

// Open 打开文件用于读取。文件不存在返回 ErrNotFound。
func (s *LocalStore) Open(_ context.Context, folder, filename string) (io.ReadCloser, error) {
	target, err := s.path(folder, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", target, ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", target, err)
	}
	return f, nil
}

// Delete 删除文件。不存在视为成功（幂等）。
func (s *LocalStore) Delete(_ context.Context, folder, filename string) error {
	target, err := s.path(folder, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", target, err)
	}
	return nil
}
