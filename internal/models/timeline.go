package models

import "sort"

// Frame 深度轨道上的一帧
// 未在编码中出现的字段继承同一轨道上一帧的值。
type Frame struct {
	Time   int            `json:"time"`
	UID    int            `json:"uid"` // -1 表示没有符号
	Matrix ComputedMatrix `json:"matrix"`
	Name   *string        `json:"name"`
	Alpha  float64        `json:"alpha"`
}

// DefaultFrame 轨道第一帧之前的初始状态
func DefaultFrame() Frame {
	return Frame{
		UID:    -1,
		Matrix: IdentityComputed,
		Alpha:  1,
	}
}

// Timeline 按时间排序的帧序列
type Timeline struct {
	frames []Frame
}

// Add 按时间插入帧，时间相同的帧保持插入顺序
func (t *Timeline) Add(f Frame) {
	n := len(t.frames)
	if n == 0 || t.frames[n-1].Time <= f.Time {
		t.frames = append(t.frames, f)
		return
	}
	i := sort.Search(n, func(i int) bool { return t.frames[i].Time > f.Time })
	t.frames = append(t.frames, Frame{})
	copy(t.frames[i+1:], t.frames[i:])
	t.frames[i] = f
}

// Len 帧数
func (t *Timeline) Len() int { return len(t.frames) }

// Frames 返回帧切片，调用方不得修改
func (t *Timeline) Frames() []Frame { return t.frames }

// FrameAt 返回时间 <= time 的最后一帧
func (t *Timeline) FrameAt(time int) (Frame, bool) {
	i := sort.Search(len(t.frames), func(i int) bool { return t.frames[i].Time > time })
	if i == 0 {
		return Frame{}, false
	}
	return t.frames[i-1], true
}

// MovieClipState 可独立播放的命名动画
type MovieClipState struct {
	Name          string     `json:"name"`
	TotalTime     int        `json:"totalTime"`
	LoopStartTime int        `json:"loopStartTime"`
	Timelines     []Timeline `json:"-"`
}

// NewMovieClipState 创建带 depths 条轨道的状态
func NewMovieClipState(depths int) *MovieClipState {
	return &MovieClipState{Timelines: make([]Timeline, depths)}
}

// FrameCount 所有轨道的帧总数
func (s *MovieClipState) FrameCount() int {
	total := 0
	for i := range s.Timelines {
		total += s.Timelines[i].Len()
	}
	return total
}

// Sample 返回每条轨道在 time 时刻生效的帧，轨道为空时 ok 为 false
func (s *MovieClipState) Sample(time int) []DepthFrame {
	out := make([]DepthFrame, len(s.Timelines))
	for depth := range s.Timelines {
		f, ok := s.Timelines[depth].FrameAt(time)
		out[depth] = DepthFrame{Depth: depth, Frame: f, Present: ok}
	}
	return out
}

// KeyTimes 返回所有轨道上出现过的帧时间，升序去重
func (s *MovieClipState) KeyTimes() []int {
	seen := make(map[int]struct{})
	var times []int
	for i := range s.Timelines {
		for _, f := range s.Timelines[i].frames {
			if _, ok := seen[f.Time]; ok {
				continue
			}
			seen[f.Time] = struct{}{}
			times = append(times, f.Time)
		}
	}
	sort.Ints(times)
	return times
}

// DepthFrame 某条深度轨道上的帧
type DepthFrame struct {
	Depth   int   `json:"depth"`
	Frame   Frame `json:"frame"`
	Present bool  `json:"present"`
}
