package models

// Summary 库的概要信息，用于缓存和 API 列表
type Summary struct {
	MsPerFrame  int             `json:"msPerFrame" cbor:"msPerFrame" yaml:"msPerFrame"`
	FrameRate   float64         `json:"frameRate" cbor:"frameRate" yaml:"frameRate"`
	AtlasCount  int             `json:"atlasCount" cbor:"atlasCount" yaml:"atlasCount"`
	SymbolCount int             `json:"symbolCount" cbor:"symbolCount" yaml:"symbolCount"`
	KindCounts  map[string]int  `json:"kindCounts" cbor:"kindCounts" yaml:"kindCounts"`
	Symbols     []SymbolSummary `json:"symbols" cbor:"symbols" yaml:"symbols"`
}

// SymbolSummary 单个符号的概要
type SymbolSummary struct {
	ID     int            `json:"id" cbor:"id" yaml:"id"`
	Name   string         `json:"name,omitempty" cbor:"name,omitempty" yaml:"name,omitempty"`
	Kind   string         `json:"kind" cbor:"kind" yaml:"kind"`
	Limits *Limits        `json:"limits,omitempty" cbor:"limits,omitempty" yaml:"limits,omitempty"`
	States []StateSummary `json:"states,omitempty" cbor:"states,omitempty" yaml:"states,omitempty"`
}

// StateSummary 影片剪辑中一个命名入口的概要
type StateSummary struct {
	Name          string `json:"name" cbor:"name" yaml:"name"`
	StartTime     int    `json:"startTime" cbor:"startTime" yaml:"startTime"`
	TotalTime     int    `json:"totalTime" cbor:"totalTime" yaml:"totalTime"`
	LoopStartTime int    `json:"loopStartTime" cbor:"loopStartTime" yaml:"loopStartTime"`
	Depths        int    `json:"depths" cbor:"depths" yaml:"depths"`
	Frames        int    `json:"frames" cbor:"frames" yaml:"frames"`
}

// Summarize 生成概要
func (l *Library) Summarize() Summary {
	sum := Summary{
		MsPerFrame:  l.MsPerFrame,
		FrameRate:   l.FrameRate,
		AtlasCount:  len(l.Atlases),
		SymbolCount: len(l.Symbols),
		KindCounts:  make(map[string]int),
		Symbols:     make([]SymbolSummary, 0, len(l.Symbols)),
	}
	for _, s := range l.Symbols {
		sum.KindCounts[s.Kind().String()]++
		sum.Symbols = append(sum.Symbols, SummarizeSymbol(s))
	}
	return sum
}

// SummarizeSymbol 生成单个符号的概要
func SummarizeSymbol(s Symbol) SymbolSummary {
	base := s.Base()
	ss := SymbolSummary{
		ID:   base.ID,
		Name: base.DisplayName(),
		Kind: s.Kind().String(),
	}
	mc, ok := s.(*MovieClipSymbol)
	if !ok {
		return ss
	}
	limits := mc.Limits
	ss.Limits = &limits
	for _, name := range mc.StateNames() {
		entry := mc.States[name]
		st := StateSummary{Name: name, StartTime: entry.StartTime}
		if entry.State != nil {
			st.TotalTime = entry.State.TotalTime
			st.LoopStartTime = entry.State.LoopStartTime
			st.Depths = len(entry.State.Timelines)
			st.Frames = entry.State.FrameCount()
		}
		ss.States = append(ss.States, st)
	}
	return ss
}
