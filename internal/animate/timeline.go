package animate

import (
	"fmt"

	"ani-viewer/internal/config"
	"ani-viewer/internal/models"
)

// maxDepths 单个影片剪辑允许的最大轨道数
const maxDepths = 1 << 16

// trackState 单条深度轨道的增量解码状态
// 帧中未出现的字段沿用上一帧的值；每条轨道从默认值重新开始。
type trackState struct {
	uid    int
	name   *string
	alpha  float64
	matrix models.ComputedMatrix
}

func newTrackState() trackState {
	return trackState{
		uid:    -1,
		alpha:  1,
		matrix: models.IdentityComputed,
	}
}

func (s trackState) frame(time int) models.Frame {
	return models.Frame{
		Time:   time,
		UID:    s.uid,
		Matrix: s.matrix,
		Name:   s.name,
		Alpha:  s.alpha,
	}
}

func (d *decoder) readMovieClip(base models.SymbolBase) (*models.MovieClipSymbol, error) {
	start := d.r.Offset()
	var limits models.Limits
	// 文件中的顺序: depths, frames, time, uids
	for _, field := range []*int{&limits.TotalDepths, &limits.TotalFrames, &limits.TotalTime} {
		v, err := d.r.ReadInt()
		if err != nil {
			return nil, err
		}
		*field = v
	}
	if limits.TotalDepths > maxDepths {
		return nil, formatErrorAt(start, "movie clip depths",
			fmt.Errorf("%w: %d (max %d)", ErrTooManyDepths, limits.TotalDepths, maxDepths))
	}
	uids, err := d.r.ReadCount("movie clip uids")
	if err != nil {
		return nil, err
	}
	limits.TotalUids = uids

	uidInfo := make([]models.UidDef, 0, d.r.CapHint(uids))
	for i := 0; i < uids; i++ {
		target, err := d.r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("uid %d: %w", i, err)
		}
		uidInfo = append(uidInfo, models.UidDef{CharacterID: target})
	}
	mc := models.NewMovieClipSymbol(base.ID, base.Name, limits, uidInfo)

	stateCount, err := d.r.ReadCount("movie clip states")
	if err != nil {
		return nil, err
	}
	states := make([]*models.MovieClipState, 0, d.r.CapHint(stateCount))
	for i := 0; i < stateCount; i++ {
		state, err := d.readState(limits.TotalDepths)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", i, err)
		}
		states = append(states, state)
	}

	namedCount, err := d.r.ReadCount("movie clip named states")
	if err != nil {
		return nil, err
	}
	for i := 0; i < namedCount; i++ {
		name, err := d.readStringRef("state name")
		if err != nil {
			return nil, err
		}
		startTime, err := d.r.ReadInt()
		if err != nil {
			return nil, err
		}
		indexOffset := d.r.Offset()
		stateIndex, err := d.r.ReadInt()
		if err != nil {
			return nil, err
		}
		if stateIndex >= len(states) {
			return nil, formatErrorAt(indexOffset, "state index", outOfRange("state", stateIndex, len(states)))
		}
		key := ""
		if name != nil {
			key = *name
		}
		mc.States[key] = models.StateWithStartTime{State: states[stateIndex], StartTime: startTime}
	}
	return mc, nil
}

func (d *decoder) readState(depths int) (*models.MovieClipState, error) {
	name, err := d.readStringRef("state name")
	if err != nil {
		return nil, err
	}
	state := models.NewMovieClipState(depths)
	if name != nil {
		state.Name = *name
	}
	if state.TotalTime, err = d.r.ReadInt(); err != nil {
		return nil, err
	}
	if state.LoopStartTime, err = d.r.ReadInt(); err != nil {
		return nil, err
	}

	for depth := range state.Timelines {
		if err := d.readTrack(&state.Timelines[depth]); err != nil {
			return nil, fmt.Errorf("depth %d: %w", depth, err)
		}
	}
	return state, nil
}

func (d *decoder) readTrack(timeline *models.Timeline) error {
	count, err := d.r.ReadCount("frames")
	if err != nil {
		return err
	}
	ts := newTrackState()
	for i := 0; i < count; i++ {
		var time int
		ts, time, err = d.readFrame(ts)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		timeline.Add(ts.frame(time))
	}
	return nil
}

// readFrame 读取一帧，只覆盖标志位中出现的字段
func (d *decoder) readFrame(prev trackState) (trackState, int, error) {
	next := prev
	time, err := d.r.ReadInt()
	if err != nil {
		return prev, 0, err
	}
	flags, err := d.r.ReadUVL()
	if err != nil {
		return prev, 0, err
	}

	if flags&config.FrameHasUID != 0 {
		if next.uid, err = d.r.ReadInt(); err != nil {
			return prev, 0, err
		}
	}
	if flags&config.FrameHasName != 0 {
		if next.name, err = d.readStringRef("frame name"); err != nil {
			return prev, 0, err
		}
	}
	if flags&config.FrameHasAlpha != 0 {
		a, err := d.r.ReadU8()
		if err != nil {
			return prev, 0, err
		}
		next.alpha = float64(a) / 255.0
	}
	if flags&config.FrameHasMatrix != 0 {
		var v [6]float64
		if err := d.readFloats(v[:]); err != nil {
			return prev, 0, err
		}
		next.matrix = models.Compute(models.Matrix{A: v[0], B: v[1], C: v[2], D: v[3], TX: v[4], TY: v[5]})
	}
	return next, time, nil
}
