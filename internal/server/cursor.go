package server

import (
	"sort"
	"time"

	"ani-viewer/internal/models"
)

// Sample 某一时刻所有深度轨道上生效的帧
type Sample struct {
	Index  int                 `json:"index"`
	Time   int                 `json:"time"`
	Depths []models.DepthFrame `json:"depths"`
}

// Cursor 按关键帧时间逐个取样
// 从命名状态的起始时间开始，每次 Next 前进到下一个关键帧时间。
type Cursor struct {
	state *models.MovieClipState
	times []int
	pos   int
}

// NewCursor 创建游标并定位到状态的起始时间
func NewCursor(entry models.StateWithStartTime) *Cursor {
	c := &Cursor{state: entry.State, times: entry.State.KeyTimes()}
	c.Seek(entry.StartTime)
	return c
}

// Seek 定位到 time 时刻生效的关键帧，即不晚于 time 的最后一个关键帧
// time 早于第一个关键帧时定位到开头。
func (c *Cursor) Seek(time int) {
	i := sort.SearchInts(c.times, time)
	if i < len(c.times) && c.times[i] == time {
		c.pos = i
		return
	}
	if i > 0 {
		i--
	}
	c.pos = i
}

// SeekFraction 按比例定位，0 为开头，1 为末尾
func (c *Cursor) SeekFraction(f float64) {
	if len(c.times) == 0 {
		return
	}
	idx := int(float64(len(c.times)) * f)
	c.pos = min(max(idx, 0), len(c.times)-1)
}

// Next 返回当前位置的取样并前进，结束时 ok 为 false
func (c *Cursor) Next() (Sample, bool) {
	if c.pos >= len(c.times) {
		return Sample{}, false
	}
	t := c.times[c.pos]
	s := Sample{Index: c.pos, Time: t, Depths: c.state.Sample(t)}
	c.pos++
	return s, true
}

// Len 关键帧数量
func (c *Cursor) Len() int { return len(c.times) }

// Position 下一次 Next 返回的下标
func (c *Cursor) Position() int { return c.pos }

// Progress 已播放比例
func (c *Cursor) Progress() float64 {
	if len(c.times) == 0 {
		return 1
	}
	return float64(c.pos) / float64(len(c.times))
}

// TickInterval 以库帧率和播放速度计算发送间隔
func TickInterval(frameRate, speed float64) time.Duration {
	if frameRate <= 0 {
		frameRate = 25
	}
	if speed <= 0 {
		speed = 1
	}
	d := time.Duration(float64(time.Second) / frameRate / speed)
	return max(d, time.Millisecond)
}
