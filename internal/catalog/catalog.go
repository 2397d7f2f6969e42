// Package catalog 扫描目录中的动画库文件
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ani-viewer/internal/loader"
	"ani-viewer/internal/logging"
)

// ErrNotFound 目录中没有该名称的库
var ErrNotFound = errors.New("catalog: library not found")

// Entry 目录中的一个库文件
type Entry struct {
	Name        string             `json:"name"`
	Path        string             `json:"-"`
	FileName    string             `json:"fileName"`
	Size        int64              `json:"size"`
	ModTime     time.Time          `json:"modTime"`
	Compression loader.Compression `json:"compression"`
}

// Catalog 库目录
type Catalog struct {
	Dir     string
	Entries []Entry
	byName  map[string]int
}

// New 创建目录扫描器
func New(dir string) *Catalog {
	return &Catalog{Dir: dir}
}

// Scan 扫描目录 (不递归)，按名称排序
// 同名的多个文件 (如 hero.ani 和 hero.ani.zst) 只保留未压缩的那个。
func (c *Catalog) Scan() error {
	dirEntries, err := os.ReadDir(c.Dir)
	if err != nil {
		return fmt.Errorf("catalog: reading %s: %w", c.Dir, err)
	}

	byName := make(map[string]Entry)
	for _, de := range dirEntries {
		if de.IsDir() || !loader.IsLibraryFile(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// 扫描期间被删除
			continue
		}

		e := Entry{
			Name:        loader.LibraryName(de.Name()),
			Path:        filepath.Join(c.Dir, de.Name()),
			FileName:    de.Name(),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Compression: loader.CompressionFromName(de.Name()),
		}
		if prev, ok := byName[e.Name]; ok && prev.Compression <= e.Compression {
			logging.LogDebug("[Catalog] 跳过重复库", "name", e.Name, "file", e.FileName, "kept", prev.FileName)
			continue
		}
		byName[e.Name] = e
	}

	c.Entries = make([]Entry, 0, len(byName))
	for _, e := range byName {
		c.Entries = append(c.Entries, e)
	}
	sort.Slice(c.Entries, func(i, j int) bool {
		return c.Entries[i].Name < c.Entries[j].Name
	})
	c.byName = make(map[string]int, len(c.Entries))
	for i, e := range c.Entries {
		c.byName[e.Name] = i
	}

	logging.LogInfo(fmt.Sprintf("[Catalog] 扫描完成: %d 个库", len(c.Entries)), "dir", c.Dir)
	return nil
}

// Find 按名称查找库
func (c *Catalog) Find(name string) (Entry, error) {
	i, ok := c.byName[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.Entries[i], nil
}

// Names 所有库名称，已排序
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}

// TotalSize 所有库文件的总大小
func (c *Catalog) TotalSize() int64 {
	var total int64
	for _, e := range c.Entries {
		total += e.Size
	}
	return total
}

// Len 库数量
func (c *Catalog) Len() int {
	return len(c.Entries)
}
