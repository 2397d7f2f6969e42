package animate

import (
	"fmt"

	"ani-viewer/internal/config"
	"ani-viewer/internal/models"
)

// readSymbol 读取 (id, 名称下标, 类型标签) 并按类型解码符号体
// 类型标签只在这里分派；未知标签无法跳过，直接报错。
func (d *decoder) readSymbol() (models.Symbol, error) {
	id, err := d.r.ReadInt()
	if err != nil {
		return nil, err
	}
	name, err := d.readStringRef("symbol name")
	if err != nil {
		return nil, err
	}
	start := d.r.Offset()
	tag, err := d.r.ReadUVL()
	if err != nil {
		return nil, err
	}
	base := models.SymbolBase{ID: id, Name: name}

	switch tag {
	case config.SymbolTypeEmpty:
		return &models.EmptySymbol{SymbolBase: base}, nil
	case config.SymbolTypeSound:
		return &models.SoundSymbol{SymbolBase: base}, nil
	case config.SymbolTypeText:
		return d.readTextField(base)
	case config.SymbolTypeShape:
		return d.readShape(base)
	case config.SymbolTypeBitmap:
		return &models.BitmapSymbol{SymbolBase: base, Image: models.NewPlaceholderBitmap()}, nil
	case config.SymbolTypeMovieClip:
		return d.readMovieClip(base)
	default:
		return nil, formatErrorAt(start, "symbol type", fmt.Errorf("%w: %d", ErrUnknownSymbolType, tag))
	}
}

func (d *decoder) readTextField(base models.SymbolBase) (*models.TextFieldSymbol, error) {
	text, err := d.readStringRef("initial text")
	if err != nil {
		return nil, err
	}
	bounds, err := d.readRect()
	if err != nil {
		return nil, err
	}
	s := &models.TextFieldSymbol{SymbolBase: base, Bounds: bounds}
	if text != nil {
		s.InitialText = *text
	}
	return s, nil
}

func (d *decoder) readShape(base models.SymbolBase) (*models.ShapeSymbol, error) {
	start := d.r.Offset()
	atlasIndex, err := d.r.ReadInt()
	if err != nil {
		return nil, err
	}
	if atlasIndex >= len(d.atlases) {
		return nil, formatErrorAt(start, "shape atlas", outOfRange("atlas", atlasIndex, len(d.atlases)))
	}
	textureBounds, err := d.readIRect()
	if err != nil {
		return nil, err
	}
	bounds, err := d.readRect()
	if err != nil {
		return nil, err
	}
	path, err := d.readPath()
	if err != nil {
		return nil, err
	}
	return &models.ShapeSymbol{
		SymbolBase: base,
		Bounds:     bounds,
		Region:     d.atlases[atlasIndex].Slice(textureBounds),
		Path:       path,
	}, nil
}

// readPath 读取可选矢量路径
// 标记为 1 时读取命令和坐标数组；其他任何标记 (包括未知值) 都视为没有路径。
func (d *decoder) readPath() (*models.VectorPath, error) {
	tag, err := d.r.ReadUVL()
	if err != nil {
		return nil, err
	}
	if tag != config.PathPresent {
		return nil, nil
	}

	cmdCount, err := d.r.ReadCount("path commands")
	if err != nil {
		return nil, err
	}
	path := &models.VectorPath{Commands: make([]uint8, 0, d.r.CapHint(cmdCount))}
	for i := 0; i < cmdCount; i++ {
		c, err := d.r.ReadU8()
		if err != nil {
			return nil, err
		}
		path.Commands = append(path.Commands, c)
	}

	dataCount, err := d.r.ReadCount("path data")
	if err != nil {
		return nil, err
	}
	path.Data = make([]float64, 0, d.r.CapHint(dataCount))
	for i := 0; i < dataCount; i++ {
		v, err := d.r.ReadF32LE()
		if err != nil {
			return nil, err
		}
		path.Data = append(path.Data, float64(v))
	}
	return path, nil
}

func (d *decoder) readFloats(dst []float64) error {
	for i := range dst {
		v, err := d.r.ReadF32LE()
		if err != nil {
			return err
		}
		dst[i] = float64(v)
	}
	return nil
}

func (d *decoder) readRect() (models.Rect, error) {
	var v [4]float64
	if err := d.readFloats(v[:]); err != nil {
		return models.Rect{}, err
	}
	return models.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

// readIRect 整数矩形在文件中同样以 float32 存储，截断取整
func (d *decoder) readIRect() (models.IRect, error) {
	var v [4]float64
	if err := d.readFloats(v[:]); err != nil {
		return models.IRect{}, err
	}
	return models.IRect{X: int(v[0]), Y: int(v[1]), Width: int(v[2]), Height: int(v[3])}, nil
}
