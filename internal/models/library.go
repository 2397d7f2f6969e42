package models

import (
	"errors"
	"fmt"
)

// ErrDuplicateSymbol 同一 id 出现两次
var ErrDuplicateSymbol = errors.New("duplicate symbol id")

// Library 解码得到的动画库
// 解码完成后视为只读，不加锁。
type Library struct {
	MsPerFrame int      `json:"msPerFrame"`
	FrameRate  float64  `json:"frameRate"`
	Atlases    []*Atlas `json:"atlases"`
	Symbols    []Symbol `json:"-"`

	byID           map[int]Symbol
	byName         map[string]Symbol
	namesProcessed bool
}

// NewLibrary 按每帧毫秒数创建库
func NewLibrary(msPerFrame int) *Library {
	rate := 0.0
	if msPerFrame > 0 {
		rate = 1000.0 / float64(msPerFrame)
	}
	return &Library{
		MsPerFrame: msPerFrame,
		FrameRate:  rate,
		byID:       make(map[int]Symbol),
		byName:     make(map[string]Symbol),
	}
}

// AddSymbol 按解码顺序加入符号
func (l *Library) AddSymbol(s Symbol) error {
	id := s.Base().ID
	if _, ok := l.byID[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateSymbol, id)
	}
	l.byID[id] = s
	l.Symbols = append(l.Symbols, s)
	return nil
}

// ProcessSymbolNames 构建名称索引
// 只在第一次调用时生效；重名时解码顺序靠后的符号覆盖前面的。
func (l *Library) ProcessSymbolNames() {
	if l.namesProcessed {
		return
	}
	for _, s := range l.Symbols {
		if name := s.Base().Name; name != nil {
			l.byName[*name] = s
		}
	}
	l.namesProcessed = true
}

// SymbolByID 按 id 查找
func (l *Library) SymbolByID(id int) (Symbol, bool) {
	s, ok := l.byID[id]
	return s, ok
}

// SymbolByName 按名称查找，ProcessSymbolNames 之前总是找不到
func (l *Library) SymbolByName(name string) (Symbol, bool) {
	s, ok := l.byName[name]
	return s, ok
}

// Len 符号数量
func (l *Library) Len() int { return len(l.Symbols) }
