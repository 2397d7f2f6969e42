// Package anitest 构造测试用的动画库字节
package anitest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"ani-viewer/internal/config"
)

// Builder 按文件格式追加字段
type Builder struct {
	buf []byte
}

// UVL 追加变长无符号整数
func (b *Builder) UVL(values ...uint64) *Builder {
	for _, v := range values {
		b.buf = binary.AppendUvarint(b.buf, v)
	}
	return b
}

// U8 追加一个字节
func (b *Builder) U8(v byte) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// F32 追加小端 float32
func (b *Builder) F32(values ...float32) *Builder {
	for _, v := range values {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
	}
	return b
}

// Str 追加带长度前缀的字符串
func (b *Builder) Str(s string) *Builder {
	b.UVL(uint64(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// Raw 追加原始字节
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Bytes 返回已写入的数据
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Header 写入 magic、版本、帧时长和字符串表 (下标从 1 开始)
func (b *Builder) Header(msPerFrame uint64, strings ...string) *Builder {
	b.Raw([]byte(config.Magic)).UVL(config.MaxVersion, msPerFrame)
	b.UVL(uint64(len(strings) + 1))
	for _, s := range strings {
		b.Str(s)
	}
	return b
}

// NoAssets 写入空的图集、声音、字体表
func (b *Builder) NoAssets() *Builder {
	return b.UVL(0, 0, 0)
}

// Identity 单位矩阵
func (b *Builder) Identity() *Builder {
	return b.F32(1, 0, 0, 1, 0, 0)
}

// 示例库中的符号
const (
	SampleEmptyID  = 1
	SampleBitmapID = 3
	SampleClipID   = 10
	SampleClipName = "hero"
	SampleFrameMs  = 40
)

// SampleLibrary 三个符号的小型库:
// 无名空符号 1、无名位图 3、影片剪辑 hero (两条深度轨道, 状态 idle 和 walk 共享同一状态)
func SampleLibrary() []byte {
	var b Builder
	// 1 hero, 2 idle, 3 walk, 4 caption
	b.Header(SampleFrameMs, SampleClipName, "idle", "walk", "caption").NoAssets()
	b.UVL(3)
	b.UVL(SampleEmptyID, 0, config.SymbolTypeEmpty)
	b.UVL(SampleBitmapID, 0, config.SymbolTypeBitmap)

	b.UVL(SampleClipID, 1, config.SymbolTypeMovieClip)
	b.UVL(2, 3, 80, 1) // depths, frames, time, uids
	b.UVL(SampleBitmapID)
	b.UVL(1)        // states
	b.UVL(0, 80, 0) // 无名状态, totalTime, loopStartTime

	b.UVL(2) // depth 0
	b.UVL(0, config.FrameHasUID|config.FrameHasAlpha|config.FrameHasMatrix).UVL(0).U8(255).Identity()
	b.UVL(40, config.FrameHasMatrix).F32(1, 0, 0, 1, 10, 0)
	b.UVL(1) // depth 1
	b.UVL(40, config.FrameHasName|config.FrameHasAlpha).UVL(4).U8(51)

	b.UVL(2)
	b.UVL(2, 0, 0)  // idle
	b.UVL(3, 40, 0) // walk
	return b.Bytes()
}

// WriteFile 在 dir 下写入文件并返回路径
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
