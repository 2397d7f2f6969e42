// Package index 缓存动画库概要，避免每次启动重新解码整个库
//
// 缓存文件以 blake3 摘要命名，内容为 "AIDX" + 版本字节 + CBOR 编码的 Entry。
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"ani-viewer/internal/loader"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/models"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"
)

const (
	Magic      = "AIDX"
	Version    = 1
	headerSize = len(Magic) + 1
	fileExt    = ".aidx"
)

var (
	// ErrStale 缓存版本与当前程序不一致，视为未命中
	ErrStale = errors.New("index: stale cache entry")
	// ErrCorrupt 缓存文件头部或内容无法解析
	ErrCorrupt = errors.New("index: corrupt cache entry")
)

// Entry 一个库文件的缓存概要
type Entry struct {
	Name        string         `cbor:"name"`
	Digest      string         `cbor:"digest"`
	Size        int64          `cbor:"size"`
	Compression string         `cbor:"compression"`
	DecodeNanos int64          `cbor:"decodeNanos"`
	Summary     models.Summary `cbor:"summary"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// 确定性编码: 相同概要总是得到相同字节
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("index: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("index: CBOR decoder initialization failed: " + err.Error())
	}
}

var (
	cacheDir   string
	cacheDirMu sync.RWMutex
)

func init() {
	// 默认缓存目录：工作目录下的 .ani_cache
	cwd, err := os.Getwd()
	if err != nil {
		cacheDir = ".ani_cache"
	} else {
		cacheDir = filepath.Join(cwd, ".ani_cache")
	}
}

// SetCacheDir 设置缓存目录并确保其存在
func SetCacheDir(dir string) error {
	cacheDirMu.Lock()
	defer cacheDirMu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: creating cache dir: %w", err)
	}
	cacheDir = dir
	return nil
}

// GetCacheDir 获取当前缓存目录
func GetCacheDir() string {
	cacheDirMu.RLock()
	defer cacheDirMu.RUnlock()
	return cacheDir
}

// CachePath 返回摘要对应的缓存文件路径
func CachePath(digest loader.Digest) string {
	return filepath.Join(GetCacheDir(), digest.String()+fileExt)
}

// Encode 把条目编码为缓存文件内容
func Encode(e *Entry) ([]byte, error) {
	body, err := encMode.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, headerSize+len(body))
	out = append(out, Magic...)
	out = append(out, Version)
	return append(out, body...), nil
}

// Decode 解析缓存文件内容
func Decode(data []byte) (*Entry, error) {
	if len(data) < headerSize || !bytes.Equal(data[:len(Magic)], []byte(Magic)) {
		return nil, ErrCorrupt
	}
	if v := data[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrStale, v, Version)
	}
	var e Entry
	if err := decMode.Unmarshal(data[headerSize:], &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &e, nil
}

// Load 使用 mmap 读取缓存条目，未命中时返回 os.ErrNotExist
func Load(digest loader.Digest) (*Entry, error) {
	f, err := os.Open(CachePath(digest))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())
	if size < headerSize {
		return nil, ErrCorrupt
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	defer unix.Munmap(data)

	e, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if e.Digest != digest.String() {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return e, nil
}

// Save 写入缓存条目，先写临时文件再改名
func Save(digest loader.Digest, e *Entry) error {
	if digest.IsZero() {
		return errors.New("index: empty digest")
	}
	e.Digest = digest.String()
	data, err := Encode(e)
	if err != nil {
		return err
	}

	path := CachePath(digest)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*"+fileExt)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	logging.LogDebug("[IndexCache] 保存",
		"library", e.Name, "digest", e.Digest[:12], "bytes", len(data))
	return nil
}

// Exists 检查摘要对应的有效缓存是否存在
func Exists(digest loader.Digest) bool {
	f, err := os.Open(CachePath(digest))
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header[:len(Magic)], []byte(Magic)) && header[len(Magic)] == Version
}

// Remove 删除缓存条目，不存在时不报错
func Remove(digest loader.Digest) error {
	err := os.Remove(CachePath(digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
