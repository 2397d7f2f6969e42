package models

import (
	"image"
	"sort"
)

// Kind 符号类型
type Kind int

const (
	KindEmpty Kind = iota
	KindSound
	KindText
	KindShape
	KindBitmap
	KindMovieClip
)

var kindNames = [...]string{
	KindEmpty:     "empty",
	KindSound:     "sound",
	KindText:      "text",
	KindShape:     "shape",
	KindBitmap:    "bitmap",
	KindMovieClip: "movieclip",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText 让 JSON/YAML 输出类型名称
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SymbolBase 所有符号共有的 id 和可选名称
type SymbolBase struct {
	ID   int     `json:"id"`
	Name *string `json:"name"`
}

// Base 返回公共字段
func (b *SymbolBase) Base() *SymbolBase { return b }

// DisplayName 名称，缺省时为空串
func (b *SymbolBase) DisplayName() string {
	if b.Name == nil {
		return ""
	}
	return *b.Name
}

// Symbol 库中的一个符号
// 具体类型只有下面六种，使用方通过 type switch 或 Kind 区分。
type Symbol interface {
	Base() *SymbolBase
	Kind() Kind
}

// EmptySymbol 空标记符号
type EmptySymbol struct {
	SymbolBase
}

func (*EmptySymbol) Kind() Kind { return KindEmpty }

// SoundSymbol 声音符号，音频数据不解码
type SoundSymbol struct {
	SymbolBase
	Data []byte `json:"-"` // 始终为 nil
}

func (*SoundSymbol) Kind() Kind { return KindSound }

// TextFieldSymbol 文本框
type TextFieldSymbol struct {
	SymbolBase
	InitialText string `json:"initialText"`
	Bounds      Rect   `json:"bounds"`
}

func (*TextFieldSymbol) Kind() Kind { return KindText }

// ShapeSymbol 形状：逻辑边界 + 图集区域 + 可选矢量路径
type ShapeSymbol struct {
	SymbolBase
	Bounds Rect        `json:"bounds"`
	Region AtlasRegion `json:"region"`
	Path   *VectorPath `json:"path"`
}

func (*ShapeSymbol) Kind() Kind { return KindShape }

// BitmapSymbol 位图符号
// 当前格式不携带位图数据，Image 固定为 1x1 占位。
type BitmapSymbol struct {
	SymbolBase
	Image image.Image `json:"-"`
}

func (*BitmapSymbol) Kind() Kind { return KindBitmap }

// NewPlaceholderBitmap 1x1 透明占位图
func NewPlaceholderBitmap() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 1, 1))
}

// Limits 影片剪辑的规模声明
type Limits struct {
	TotalDepths int `json:"totalDepths" yaml:"totalDepths"`
	TotalFrames int `json:"totalFrames" yaml:"totalFrames"`
	TotalUids   int `json:"totalUids" yaml:"totalUids"`
	TotalTime   int `json:"totalTime" yaml:"totalTime"`
}

// UidDef uid 指向的目标符号 id，由渲染层延迟解析
type UidDef struct {
	CharacterID int `json:"characterId"`
}

// StateWithStartTime 命名入口：同一个状态可以从不同时间点开始播放
type StateWithStartTime struct {
	State     *MovieClipState `json:"-"`
	StartTime int             `json:"startTime"`
}

// MovieClipSymbol 影片剪辑
type MovieClipSymbol struct {
	SymbolBase
	Limits  Limits                        `json:"limits"`
	UidInfo []UidDef                      `json:"uidInfo"`
	States  map[string]StateWithStartTime `json:"-"`
}

func (*MovieClipSymbol) Kind() Kind { return KindMovieClip }

// NewMovieClipSymbol 创建影片剪辑，uids 为已读出的 uid 表
func NewMovieClipSymbol(id int, name *string, limits Limits, uids []UidDef) *MovieClipSymbol {
	return &MovieClipSymbol{
		SymbolBase: SymbolBase{ID: id, Name: name},
		Limits:     limits,
		UidInfo:    uids,
		States:     make(map[string]StateWithStartTime),
	}
}

// StateNames 返回排序后的状态名称
func (mc *MovieClipSymbol) StateNames() []string {
	names := make([]string, 0, len(mc.States))
	for name := range mc.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UidTarget 返回 uid 对应的目标符号 id
func (mc *MovieClipSymbol) UidTarget(uid int) (int, bool) {
	if uid < 0 || uid >= len(mc.UidInfo) {
		return 0, false
	}
	return mc.UidInfo[uid].CharacterID, true
}
