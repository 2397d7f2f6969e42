// Package animate 解码 KORGEANI 二进制动画库。
//
// 解码是单遍、只前进的：
//
//	header → 字符串表 → 图集 → 声音/字体 (仅计数) → 符号 → 组装
//
// 任何错误都会中止整个解码，不返回部分结果。
package animate

import (
	"fmt"
	"image"
	"io"

	"ani-viewer/internal/atlas"
	"ani-viewer/internal/config"
	"ani-viewer/internal/models"
	"ani-viewer/internal/stream"
)

// ImageDecoder 把图集原始字节解码为像素数据
type ImageDecoder interface {
	DecodeImage(data []byte) (image.Image, error)
}

// TextureRegistry 把像素数据注册为纹理
type TextureRegistry interface {
	RegisterTexture(img image.Image) (models.TextureHandle, error)
}

// ImageDecoderFunc 函数适配器
type ImageDecoderFunc func(data []byte) (image.Image, error)

func (f ImageDecoderFunc) DecodeImage(data []byte) (image.Image, error) { return f(data) }

// TextureRegistryFunc 函数适配器
type TextureRegistryFunc func(img image.Image) (models.TextureHandle, error)

func (f TextureRegistryFunc) RegisterTexture(img image.Image) (models.TextureHandle, error) {
	return f(img)
}

// Options 解码选项，零值可用
type Options struct {
	Images      ImageDecoder    // 默认 atlas.StdImageDecoder
	Textures    TextureRegistry // 默认新建 atlas.Registry
	MaxBlobSize int             // 单个图集数据上限，默认 config.DefaultMaxBlobSize
}

func (o Options) withDefaults() Options {
	if o.Images == nil {
		o.Images = atlas.StdImageDecoder{}
	}
	if o.Textures == nil {
		o.Textures = atlas.NewRegistry()
	}
	if o.MaxBlobSize <= 0 {
		o.MaxBlobSize = config.DefaultMaxBlobSize
	}
	return o
}

// Decode 从流中解码动画库
func Decode(r io.Reader, opts Options) (*models.Library, error) {
	return decode(stream.NewReader(r), opts)
}

// DecodeBytes 从字节切片解码动画库
func DecodeBytes(data []byte, opts Options) (*models.Library, error) {
	return decode(stream.NewBytesReader(data), opts)
}

type decoder struct {
	r       *stream.Reader
	opts    Options
	strings []*string
	atlases []*models.Atlas
}

// decodedSymbol 解码出的符号及其在流中的起始偏移
type decodedSymbol struct {
	offset int64
	symbol models.Symbol
}

func decode(r *stream.Reader, opts Options) (*models.Library, error) {
	opts = opts.withDefaults()
	r.SetMaxBlobSize(opts.MaxBlobSize)
	d := &decoder{r: r, opts: opts}

	msPerFrame, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if err := d.readStrings(); err != nil {
		return nil, err
	}
	if err := d.readAtlases(); err != nil {
		return nil, err
	}
	// 声音和字体只有计数，没有数据
	if _, err := d.r.ReadInt(); err != nil {
		return nil, fmt.Errorf("sound count: %w", err)
	}
	if _, err := d.r.ReadInt(); err != nil {
		return nil, fmt.Errorf("font count: %w", err)
	}

	symbols, err := d.readSymbols()
	if err != nil {
		return nil, err
	}
	return d.assemble(msPerFrame, symbols)
}

func (d *decoder) readHeader() (int, error) {
	magic, err := d.r.ReadFixedString(config.MagicSize)
	if err != nil {
		return 0, err
	}
	if magic != config.Magic {
		return 0, formatErrorAt(0, "magic", fmt.Errorf("%w: %q", ErrBadMagic, magic))
	}

	start := d.r.Offset()
	version, err := d.r.ReadUVL()
	if err != nil {
		return 0, err
	}
	if version > config.MaxVersion {
		return 0, formatErrorAt(start, "version",
			fmt.Errorf("%w: %d (supported up to %d)", ErrUnsupportedVersion, version, config.MaxVersion))
	}

	start = d.r.Offset()
	msPerFrame, err := d.r.ReadInt()
	if err != nil {
		return 0, err
	}
	if msPerFrame == 0 {
		return 0, formatErrorAt(start, "msPerFrame", ErrZeroFrameDuration)
	}
	return msPerFrame, nil
}

// readStrings 读取字符串表
// 计数包含下标 0 的保留空位，实际读取 count-1 个字符串。
func (d *decoder) readStrings() error {
	count, err := d.r.ReadCount("string table")
	if err != nil {
		return err
	}
	d.strings = make([]*string, 1, 1+d.r.CapHint(count-1))
	for i := 1; i < count; i++ {
		s, err := d.r.ReadStringVL()
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		d.strings = append(d.strings, &s)
	}
	return nil
}

// readStringRef 读取字符串表下标，0 表示没有字符串
func (d *decoder) readStringRef(op string) (*string, error) {
	start := d.r.Offset()
	index, err := d.r.ReadInt()
	if err != nil {
		return nil, err
	}
	if index >= len(d.strings) {
		return nil, formatErrorAt(start, op, outOfRange("string", index, len(d.strings)))
	}
	return d.strings[index], nil
}

func (d *decoder) readAtlases() error {
	count, err := d.r.ReadCount("atlas table")
	if err != nil {
		return err
	}
	d.atlases = make([]*models.Atlas, 0, d.r.CapHint(count))
	for i := 0; i < count; i++ {
		a, err := d.readAtlas(i)
		if err != nil {
			return err
		}
		d.atlases = append(d.atlases, a)
	}
	return nil
}

func (d *decoder) readAtlas(index int) (*models.Atlas, error) {
	var fields [4]int // format, width, height, size
	for i := range fields {
		v, err := d.r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("atlas %d header: %w", index, err)
		}
		fields[i] = v
	}
	data, err := d.r.ReadBytes(fields[3])
	if err != nil {
		return nil, fmt.Errorf("atlas %d data: %w", index, err)
	}

	img, err := d.opts.Images.DecodeImage(data)
	if err != nil {
		return nil, &AtlasError{Index: index, Op: "decode image", Err: err}
	}
	texture, err := d.opts.Textures.RegisterTexture(img)
	if err != nil {
		return nil, &AtlasError{Index: index, Op: "register texture", Err: err}
	}
	return &models.Atlas{
		Index:   index,
		Format:  fields[0],
		Width:   fields[1],
		Height:  fields[2],
		Image:   img,
		Texture: texture,
	}, nil
}

func (d *decoder) readSymbols() ([]decodedSymbol, error) {
	count, err := d.r.ReadCount("symbol table")
	if err != nil {
		return nil, err
	}
	symbols := make([]decodedSymbol, 0, d.r.CapHint(count))
	for i := 0; i < count; i++ {
		offset := d.r.Offset()
		s, err := d.readSymbol()
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		symbols = append(symbols, decodedSymbol{offset: offset, symbol: s})
	}
	return symbols, nil
}

// assemble 按解码顺序加入符号，全部加入后构建一次名称索引
func (d *decoder) assemble(msPerFrame int, symbols []decodedSymbol) (*models.Library, error) {
	library := models.NewLibrary(msPerFrame)
	library.Atlases = d.atlases
	for i, ds := range symbols {
		if err := library.AddSymbol(ds.symbol); err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, formatErrorAt(ds.offset, "symbol id", err))
		}
	}
	library.ProcessSymbolNames()
	return library, nil
}
