package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
	"testing/iotest"
)

func TestReadUVLRoundtrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 300, 16383, 16384, math.MaxUint32, math.MaxInt64, math.MaxUint64}
	var buffer []byte
	for _, v := range values {
		buffer = binary.AppendUvarint(buffer, v)
	}

	reader := NewBytesReader(buffer)
	for _, want := range values {
		got, err := reader.ReadUVL()
		if err != nil {
			t.Fatalf("ReadUVL(%d): %v", want, err)
		}
		if got != want {
			t.Errorf("ReadUVL = %d, want %d", got, want)
		}
	}
	if reader.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", reader.Remaining())
	}
}

func TestReadUVLLittleEndianGroups(t *testing.T) {
	// 0x96 0x01: low group 0x16, high group 0x01 -> 150
	reader := NewBytesReader([]byte{0x96, 0x01})
	got, err := reader.ReadUVL()
	if err != nil {
		t.Fatalf("ReadUVL: %v", err)
	}
	if got != 150 {
		t.Errorf("ReadUVL = %d, want 150", got)
	}
	if reader.Offset() != 2 {
		t.Errorf("Offset = %d, want 2", reader.Offset())
	}
}

func TestReadUVLTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"dangling continuation", []byte{0x80}},
		{"long dangling continuation", []byte{0xff, 0xff, 0x80}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewBytesReader(test.input).ReadUVL()
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("err = %v, want ErrTruncated", err)
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("err = %v, want a format error", err)
			}
		})
	}
}

func TestReadUVLOverflow(t *testing.T) {
	input := bytes.Repeat([]byte{0xff}, 11)
	input = append(input, 0x01)
	_, err := NewBytesReader(input).ReadUVL()
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}

func TestReadIntRejectsOutOfRange(t *testing.T) {
	input := binary.AppendUvarint(nil, math.MaxInt32+1)
	_, err := NewBytesReader(input).ReadInt()
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}

func TestReadCountBoundedByRemaining(t *testing.T) {
	input := binary.AppendUvarint(nil, 1000)
	input = append(input, 1, 2, 3)
	_, err := NewBytesReader(input).ReadCount("symbols")
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	var formatError *FormatError
	if !errors.As(err, &formatError) || formatError.Op != "symbols" || formatError.Offset != 0 {
		t.Errorf("err = %#v, want symbols error at offset 0", err)
	}
}

func TestReadBytesExceedsRemaining(t *testing.T) {
	reader := NewBytesReader([]byte{1, 2, 3})
	if _, err := reader.ReadBytes(4); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	// 失败的长度检查不能消费任何字节
	if reader.Offset() != 0 {
		t.Errorf("Offset = %d, want 0", reader.Offset())
	}
}

func TestReadBytesStreamingTruncated(t *testing.T) {
	reader := NewReader(iotest.OneByteReader(bytes.NewReader([]byte{1, 2, 3})))
	if reader.Remaining() != -1 {
		t.Fatalf("Remaining = %d, want -1 for an unsized stream", reader.Remaining())
	}
	if _, err := reader.ReadBytes(4); !errors.Is(err, ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestReadBytesMaxBlobSize(t *testing.T) {
	reader := NewBytesReader(make([]byte, 64))
	reader.SetMaxBlobSize(16)
	if _, err := reader.ReadBytes(17); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	data, err := reader.ReadBytes(16)
	if err != nil {
		t.Fatalf("ReadBytes(16): %v", err)
	}
	if len(data) != 16 {
		t.Errorf("len = %d, want 16", len(data))
	}
}

func TestReadFixedStringTrimsNul(t *testing.T) {
	reader := NewBytesReader([]byte("ABC\x00\x00\x00\x00\x00rest"))
	got, err := reader.ReadFixedString(8)
	if err != nil {
		t.Fatalf("ReadFixedString: %v", err)
	}
	if got != "ABC" {
		t.Errorf("ReadFixedString = %q, want %q", got, "ABC")
	}
	if reader.Offset() != 8 {
		t.Errorf("Offset = %d, want 8", reader.Offset())
	}
}

func TestReadStringVL(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"multibyte", []byte("héllo 世界"), "héllo 世界"},
		{"empty", nil, ""},
		{"invalid utf8", []byte{'a', 0xff, 'b'}, "a�b"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := binary.AppendUvarint(nil, uint64(len(test.input)))
			input = append(input, test.input...)
			got, err := NewBytesReader(input).ReadStringVL()
			if err != nil {
				t.Fatalf("ReadStringVL: %v", err)
			}
			if got != test.want {
				t.Errorf("ReadStringVL = %q, want %q", got, test.want)
			}
		})
	}
}

func TestReadF32LE(t *testing.T) {
	input := binary.LittleEndian.AppendUint32(nil, math.Float32bits(-2.5))
	reader := NewReader(iotest.HalfReader(bytes.NewReader(input)))
	got, err := reader.ReadF32LE()
	if err != nil {
		t.Fatalf("ReadF32LE: %v", err)
	}
	if got != -2.5 {
		t.Errorf("ReadF32LE = %v, want -2.5", got)
	}
	if _, err := reader.ReadF32LE(); !errors.Is(err, ErrTruncated) {
		t.Errorf("second ReadF32LE err = %v, want ErrTruncated", err)
	}
}

func TestReadU8Truncated(t *testing.T) {
	_, err := NewBytesReader(nil).ReadU8()
	if !IsFormatError(err) {
		t.Fatalf("err = %v, want a *FormatError", err)
	}
}

func TestReadErrorsKeepCause(t *testing.T) {
	cause := errors.New("zstd: corrupt block")
	reads := []struct {
		name string
		read func(r *Reader) error
	}{
		{"uvl", func(r *Reader) error { _, err := r.ReadUVL(); return err }},
		{"u8", func(r *Reader) error { _, err := r.ReadU8(); return err }},
		{"f32", func(r *Reader) error { _, err := r.ReadF32LE(); return err }},
		{"bytes", func(r *Reader) error { _, err := r.ReadBytes(8); return err }},
		{"large bytes", func(r *Reader) error { _, err := r.ReadBytes(blobChunk + 1); return err }},
	}
	for _, test := range reads {
		t.Run(test.name, func(t *testing.T) {
			err := test.read(NewReader(iotest.ErrReader(cause)))
			if !errors.Is(err, cause) {
				t.Errorf("err = %v, want it to wrap the reader error", err)
			}
			if IsFormatError(err) || errors.Is(err, ErrOverflow) {
				t.Errorf("reader failure reported as format error: %v", err)
			}
		})
	}
}

func TestReadUVLCauseAfterPartialValue(t *testing.T) {
	cause := errors.New("disk gone")
	src := io.MultiReader(bytes.NewReader([]byte{0x80, 0x80}), iotest.ErrReader(cause))
	_, err := NewReader(src).ReadUVL()
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want the reader error", err)
	}
}

func TestCapHint(t *testing.T) {
	known := NewBytesReader(make([]byte, 4096))
	if got := known.CapHint(3000); got != 3000 {
		t.Errorf("known length CapHint(3000) = %d", got)
	}
	streaming := NewReader(iotest.OneByteReader(bytes.NewReader(nil)))
	if got := streaming.CapHint(math.MaxInt32); got != preallocLimit {
		t.Errorf("streaming CapHint(MaxInt32) = %d, want %d", got, preallocLimit)
	}
	if got := streaming.CapHint(10); got != 10 {
		t.Errorf("streaming CapHint(10) = %d", got)
	}
	if got := streaming.CapHint(-1); got != 0 {
		t.Errorf("CapHint(-1) = %d", got)
	}
}

func TestReadBytesStreamingLarge(t *testing.T) {
	data := bytes.Repeat([]byte{7}, blobChunk*3+5)
	reader := NewReader(iotest.HalfReader(bytes.NewReader(data)))
	got, err := reader.ReadBytes(len(data))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) || reader.Offset() != int64(len(data)) {
		t.Errorf("read %d bytes, offset %d", len(got), reader.Offset())
	}

	short := NewReader(iotest.HalfReader(bytes.NewReader(data[:blobChunk+10])))
	if _, err := short.ReadBytes(len(data)); !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}
