package stream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// DefaultMaxBlobSize 单个原始数据块的默认上限 (256MB)
const DefaultMaxBlobSize = 256 << 20

const (
	// preallocLimit 剩余长度未知时按文件计数预分配的元素上限
	preallocLimit = 1024
	// blobChunk 剩余长度未知时大数据块的初始缓冲
	blobChunk = 64 << 10
)

// Reader 单向字节游标
// 所有读取只前进，不回退。字节切片输入时剩余长度已知，可以在分配前拒绝越界长度。
type Reader struct {
	src     io.Reader
	br      io.ByteReader
	pos     int64
	size    int64 // -1 表示未知
	maxBlob int
	lastErr error // 最近一次 ReadByte 的底层错误

	utf8 *encoding.Decoder
}

// NewReader 包装任意 io.Reader
// 已实现 Len() 的输入 (bytes.Reader, bytes.Buffer) 会得到精确的剩余长度检查。
func NewReader(r io.Reader) *Reader {
	size := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}
	br, ok := r.(io.ByteReader)
	if !ok {
		b := bufio.NewReader(r)
		r, br = b, b
	}
	return &Reader{
		src:     r,
		br:      br,
		size:    size,
		maxBlob: DefaultMaxBlobSize,
	}
}

// NewBytesReader 包装字节切片
func NewBytesReader(b []byte) *Reader {
	return NewReader(bytes.NewReader(b))
}

// SetMaxBlobSize 设置 ReadBytes 允许的最大长度，n <= 0 时恢复默认值
func (r *Reader) SetMaxBlobSize(n int) {
	if n <= 0 {
		n = DefaultMaxBlobSize
	}
	r.maxBlob = n
}

// Offset 已消费的字节数
func (r *Reader) Offset() int64 { return r.pos }

// Remaining 剩余字节数，未知时返回 -1
func (r *Reader) Remaining() int64 {
	if r.size < 0 {
		return -1
	}
	return r.size - r.pos
}

// Fail 在当前偏移处构造格式错误
func (r *Reader) Fail(op string, err error) error {
	return &FormatError{Offset: r.pos, Op: op, Err: err}
}

func (r *Reader) failAt(pos int64, op string, err error) error {
	return &FormatError{Offset: pos, Op: op, Err: err}
}

// readFail 只有流结束才算截断，其他读取错误原样包装，不归入格式错误
func (r *Reader) readFail(pos int64, op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return r.failAt(pos, op, ErrTruncated)
	}
	return fmt.Errorf("%s at offset %d: %w", op, pos, err)
}

// CapHint 按文件中的计数给出切片预分配容量
// 剩余长度已知时计数已由 ReadCount 限制；未知时最多预分配 preallocLimit 个，其余靠 append 增长。
func (r *Reader) CapHint(n int) int {
	switch {
	case n <= 0:
		return 0
	case r.Remaining() < 0 && n > preallocLimit:
		return preallocLimit
	default:
		return n
	}
}

// ReadByte 实现 io.ByteReader
func (r *Reader) ReadByte() (byte, error) {
	c, err := r.br.ReadByte()
	if err != nil {
		r.lastErr = err
		return 0, err
	}
	r.pos++
	return c, nil
}

// ReadU8 读取一个无符号字节
func (r *Reader) ReadU8() (uint8, error) {
	c, err := r.ReadByte()
	if err != nil {
		return 0, r.readFail(r.pos, "u8", err)
	}
	return c, nil
}

// ReadUVL 读取变长无符号整数
// 每字节低 7 位为数据，最高位表示后面还有字节，低位组在前。
func (r *Reader) ReadUVL() (uint64, error) {
	start := r.pos
	r.lastErr = nil
	v, err := binary.ReadUvarint(r)
	switch {
	case err == nil:
		return v, nil
	case r.lastErr != nil:
		return 0, r.readFail(start, "uvl", r.lastErr)
	default:
		return 0, r.failAt(start, "uvl", ErrOverflow)
	}
}

// ReadInt 读取变长整数并转换为 int，超出 int32 范围视为溢出
func (r *Reader) ReadInt() (int, error) {
	start := r.pos
	v, err := r.ReadUVL()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, r.failAt(start, "uvl", ErrOverflow)
	}
	return int(v), nil
}

// ReadCount 读取元素个数
// 每个元素至少占 1 字节，剩余长度已知时个数不能超过剩余字节数。
func (r *Reader) ReadCount(op string) (int, error) {
	start := r.pos
	n, err := r.ReadInt()
	if err != nil {
		return 0, err
	}
	if rem := r.Remaining(); rem >= 0 && int64(n) > rem {
		return 0, r.failAt(start, op, ErrTruncated)
	}
	return n, nil
}

// ReadF32LE 读取小端 float32
func (r *Reader) ReadF32LE() (float32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.src, b[:]); err != nil {
		return 0, r.readFail(r.pos, "f32", err)
	}
	r.pos += 4
	return math.Float32frombits(binary.LittleEndian.Uint32(b[:])), nil
}

// ReadBytes 读取恰好 n 个原始字节
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	switch {
	case n < 0:
		return nil, r.Fail("bytes", ErrNegative)
	case n > r.maxBlob:
		return nil, r.Fail("bytes", ErrTooLarge)
	}
	rem := r.Remaining()
	if rem >= 0 && int64(n) > rem {
		return nil, r.Fail("bytes", ErrTruncated)
	}
	if rem < 0 && n > blobChunk {
		// 长度未知，边读边增长，截断的流不会先分配整块
		var buf bytes.Buffer
		buf.Grow(blobChunk)
		read, err := io.CopyN(&buf, r.src, int64(n))
		r.pos += read
		if err != nil {
			return nil, r.readFail(r.pos, "bytes", err)
		}
		return buf.Bytes(), nil
	}
	b := make([]byte, n)
	read, err := io.ReadFull(r.src, b)
	if err != nil {
		r.pos += int64(read)
		return nil, r.readFail(r.pos, "bytes", err)
	}
	r.pos += int64(n)
	return b, nil
}

// ReadFixedString 读取定长字段，在第一个 NUL 处截断
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// ReadStringVL 读取长度前缀的 UTF-8 字符串
// 非法序列替换为 U+FFFD，不视为错误。
func (r *Reader) ReadStringVL() (string, error) {
	n, err := r.ReadInt()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	if r.utf8 == nil {
		r.utf8 = unicode.UTF8.NewDecoder()
	}
	out, err := r.utf8.Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError)), nil
	}
	return string(out), nil
}
