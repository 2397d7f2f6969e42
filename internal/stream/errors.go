package stream

import (
	"errors"
	"fmt"
)

// ErrFormat 所有格式错误的公共标记，配合 errors.Is 使用
var ErrFormat = errors.New("format error")

var (
	ErrTruncated = errors.New("unexpected end of stream")
	ErrOverflow  = errors.New("var-length integer overflow")
	ErrTooLarge  = errors.New("declared length too large")
	ErrNegative  = errors.New("negative length")
)

// FormatError 带偏移量的格式错误
type FormatError struct {
	Offset int64  // 出错时游标位置
	Op     string // 正在读取的字段
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrFormat) 对任意格式错误成立
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IsFormatError 判断 err 链中是否包含格式错误
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
