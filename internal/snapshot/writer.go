package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/logger"
)

const PublishFileName = "news.json"

// Mirror 额外的发布位置（对象存储等），失败只记日志
type Mirror interface {
	Name() string
	Put(ctx context.Context, data []byte) error
}

// Writer 把最终集合写成规范 JSON，然后尽力复制到发布位置
type Writer struct {
	path       string
	publishDir string
	mirrors    []Mirror
}

func NewWriter(path, publishDir string, mirrors ...Mirror) *Writer {
	return &Writer{path: path, publishDir: publishDir, mirrors: mirrors}
}

func (w *Writer) Path() string {
	return w.path
}

// Encode 2 空格缩进、不转义非 ASCII 与 HTML 字符；空集合输出 []
func Encode(items []collector.NewsItem) ([]byte, error) {
	if items == nil {
		items = []collector.NewsItem{}
	}
	out := make([]collector.NewsItem, len(items))
	for i, it := range items {
		if it.TitleTranslated == "" {
			it.TitleTranslated = it.Title
		}
		out[i] = it
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 只有主文件写入失败才返回错误
func (w *Writer) Write(ctx context.Context, items []collector.NewsItem) error {
	log := logger.Component("snapshot")

	data, err := Encode(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := writeFileAtomic(w.path, data); err != nil {
		return fmt.Errorf("write snapshot %s: %w", w.path, err)
	}
	log.Info().Str("path", w.path).Int("items", len(items)).Msg("snapshot written")

	if w.publishDir != "" {
		if err := w.publish(data); err != nil {
			log.Warn().Err(err).Str("dir", w.publishDir).Msg("publish copy failed")
		}
	}

	for _, m := range w.mirrors {
		if err := m.Put(ctx, data); err != nil {
			log.Warn().Err(err).Str("mirror", m.Name()).Msg("snapshot mirror failed")
			continue
		}
		log.Info().Str("mirror", m.Name()).Msg("snapshot mirrored")
	}
	return nil
}

// publish 目录不存在时直接跳过，不会创建
func (w *Writer) publish(data []byte) error {
	info, err := os.Stat(w.publishDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.publishDir)
	}
	dst := filepath.Join(w.publishDir, PublishFileName)
	if err := writeFileAtomic(dst, data); err != nil {
		return err
	}
	logger.Get().Info().Str("path", dst).Msg("snapshot published")
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load 读取已有快照；文件不存在时返回 os.ErrNotExist
func Load(path string) ([]collector.NewsItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []collector.NewsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return items, nil
}
