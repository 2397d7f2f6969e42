package animate

import (
	"errors"
	"fmt"

	"ani-viewer/internal/models"
	"ani-viewer/internal/stream"
)

// ErrFormat 任意格式错误，errors.Is(err, ErrFormat) 成立
var ErrFormat = stream.ErrFormat

var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrZeroFrameDuration  = errors.New("msPerFrame is zero")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrUnknownSymbolType  = errors.New("unknown symbol type")
	ErrTooManyDepths      = errors.New("too many depths")
	ErrDuplicateSymbol    = models.ErrDuplicateSymbol
)

// AtlasError 图集协作者 (图像解码、纹理注册) 返回的错误
type AtlasError struct {
	Index int
	Op    string
	Err   error
}

func (e *AtlasError) Error() string {
	return fmt.Sprintf("atlas %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *AtlasError) Unwrap() error { return e.Err }

func formatErrorAt(offset int64, op string, err error) error {
	return &stream.FormatError{Offset: offset, Op: op, Err: err}
}

func outOfRange(what string, index, length int) error {
	return fmt.Errorf("%w: %s %d (have %d)", ErrIndexOutOfRange, what, index, length)
}

// IsFormatError 判断 err 是否为文件格式错误 (区别于 IO 或协作方错误)
func IsFormatError(err error) bool {
	return stream.IsFormatError(err)
}
