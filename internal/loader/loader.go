// Package loader 把磁盘上的动画库文件交给解码器
//
// 未压缩文件通过 mmap 映射后整体解码；.zst 和 .lz4 文件以流的方式解压解码。
// 每个文件都计算 blake3 摘要，用作概要缓存的键。
package loader

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/config"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/models"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// Compression 文件压缩方式
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// MarshalText 以名称形式输出，便于 JSON/YAML
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

var (
	magicZstd = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicLZ4  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// CompressionFromName 根据文件名判断压缩方式
func CompressionFromName(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, config.ExtZstd):
		return CompressionZstd
	case strings.HasSuffix(lower, config.ExtLZ4):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// SniffCompression 根据文件头部魔数判断压缩方式
func SniffCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd
	case bytes.HasPrefix(head, magicLZ4):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// IsLibraryFile 文件名是否为动画库文件
func IsLibraryFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, config.ExtPlain) ||
		strings.HasSuffix(lower, config.ExtZstd) ||
		strings.HasSuffix(lower, config.ExtLZ4)
}

// LibraryName 去掉动画库扩展名 (含压缩后缀)
func LibraryName(fileName string) string {
	base := filepath.Base(fileName)
	lower := strings.ToLower(base)
	for _, ext := range []string{config.ExtZstd, config.ExtLZ4, config.ExtPlain} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// Digest 文件内容的 blake3 摘要
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero 摘要是否未计算
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Result 一次加载的结果
type Result struct {
	Path        string
	Library     *models.Library
	Digest      Digest
	Size        int64 // 磁盘上的文件大小
	Compression Compression
	Elapsed     time.Duration
}

// HashFile 流式计算文件摘要
func HashFile(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, fmt.Errorf("hashing %s: %w", path, err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// HashBytes 计算内存数据的摘要
func HashBytes(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

// Load 加载并解码一个动画库文件
func Load(path string, opts animate.Options) (*Result, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	comp := SniffCompression(head[:n])
	if comp == CompressionNone {
		comp = CompressionFromName(path)
	}

	res := &Result{Path: path, Size: info.Size(), Compression: comp}
	switch comp {
	case CompressionNone:
		res.Library, res.Digest, err = loadMapped(f, info.Size(), opts)
	default:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		res.Library, res.Digest, err = loadCompressed(f, comp, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	res.Elapsed = time.Since(start)

	logging.LogDebug("[Loader] 加载完成",
		"file", filepath.Base(path),
		"compression", comp.String(),
		"size", res.Size,
		"symbols", res.Library.Len(),
		"elapsed", res.Elapsed)
	return res, nil
}

// loadMapped 使用 mmap 映射整个文件后解码，解码结果不引用映射内存
func loadMapped(f *os.File, size int64, opts animate.Options) (*models.Library, Digest, error) {
	if size == 0 {
		lib, err := animate.DecodeBytes(nil, opts)
		return lib, HashBytes(nil), err
	}
	if size > int64(^uint(0)>>1) {
		return nil, Digest{}, fmt.Errorf("file too large to map: %d", size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, Digest{}, fmt.Errorf("mmap: %w", err)
	}
	defer unix.Munmap(data)

	digest := HashBytes(data)
	lib, err := animate.DecodeBytes(data, opts)
	return lib, digest, err
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// loadCompressed 边读边算摘要，解压流直接交给解码器
func loadCompressed(f *os.File, comp Compression, opts animate.Options) (*models.Library, Digest, error) {
	var digest Digest
	h := blake3.New()
	tee := io.TeeReader(f, h)

	var (
		lib *models.Library
		err error
	)
	switch comp {
	case CompressionZstd:
		dec := zstdDecPool.Get().(*zstd.Decoder)
		if err = dec.Reset(tee); err != nil {
			zstdDecPool.Put(dec)
			return nil, digest, fmt.Errorf("zstd: %w", err)
		}
		lib, err = animate.Decode(dec, opts)
		dec.Reset(nil)
		zstdDecPool.Put(dec)
	case CompressionLZ4:
		lib, err = animate.Decode(lz4.NewReader(tee), opts)
	default:
		return nil, digest, fmt.Errorf("unsupported compression %s", comp)
	}
	if err != nil {
		return nil, digest, err
	}

	// 解码器可能没有读到压缩流末尾，补齐剩余字节后摘要才覆盖整个文件
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, digest, err
	}
	copy(digest[:], h.Sum(nil))
	return lib, digest, nil
}
