package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ani-viewer/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSMessage WebSocket 客户端消息
type WSMessage struct {
	Action  string  `json:"action"`
	Library string  `json:"library"`
	Symbol  int     `json:"symbol"`
	State   string  `json:"state"`
	Speed   float64 `json:"speed"`
	Time    *int    `json:"time,omitempty"` // seek 目标时间，缺省时从状态起始时间开始
}

// StreamSession 流会话
type StreamSession struct {
	ws       *websocket.Conn
	srv      *LibraryServer
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	writeMu  sync.Mutex
	running  bool
}

// HandleWebSocket WebSocket 处理器
// GET /api/v1/stream
func (h *Handlers) HandleWebSocket(ctx iris.Context) {
	ws, err := upgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
	if err != nil {
		logging.LogWarn("[WS] Upgrade error", "error", err)
		return
	}
	defer ws.Close()

	session := &StreamSession{
		ws:       ws,
		srv:      h.Server(),
		stopChan: make(chan struct{}),
	}

	sessionID := fmt.Sprintf("%p", ws)
	logging.LogInfo("[WS] 新连接: " + sessionID)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.LogWarn("[WS] Error", "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			session.sendJSON(map[string]any{"error": "无效的 JSON"})
			continue
		}

		switch msg.Action {
		case "play", "seek":
			session.stop()
			if msg.Speed == 0 {
				msg.Speed = 1.0
			}
			session.start(msg)
			logging.LogDebug("[WS] 开始播放", "library", msg.Library, "symbol", msg.Symbol,
				"state", msg.State, "speed", msg.Speed)

		case "pause":
			session.stop()
			logging.LogDebug("[WS] 暂停")

		default:
			session.sendJSON(map[string]any{"error": "未知操作: " + msg.Action})
		}
	}

	session.stop()
	logging.LogInfo("[WS] 断开连接: " + sessionID)
}

func (s *StreamSession) start(msg WSMessage) {
	s.mu.Lock()
	s.running = true
	stopChan := s.stopChan
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.streamState(msg, stopChan)
	}()
}

// stop 停止当前播放并等待发送协程退出
func (s *StreamSession) stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	s.stopChan = make(chan struct{})
	s.running = false
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *StreamSession) sendJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

// streamState 按帧率发送状态的逐帧取样
func (s *StreamSession) streamState(msg WSMessage, stopChan chan struct{}) {
	res, _, entry, err := s.srv.GetState(msg.Library, msg.Symbol, msg.State)
	if err != nil {
		s.sendJSON(map[string]any{"error": err.Error()})
		return
	}

	cursor := NewCursor(entry)
	if msg.Time != nil {
		cursor.Seek(*msg.Time)
	}

	s.sendJSON(map[string]any{
		"type":          "stream_start",
		"library":       msg.Library,
		"symbol":        msg.Symbol,
		"state":         msg.State,
		"frameRate":     res.Library.FrameRate,
		"startTime":     entry.StartTime,
		"totalTime":     entry.State.TotalTime,
		"loopStartTime": entry.State.LoopStartTime,
		"depths":        len(entry.State.Timelines),
		"ticks":         cursor.Len(),
		"position":      cursor.Position(),
	})

	ticker := time.NewTicker(TickInterval(res.Library.FrameRate, msg.Speed))
	defer ticker.Stop()

	sent := 0
	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
		}

		sample, ok := cursor.Next()
		if !ok {
			break
		}
		if err := s.sendJSON(map[string]any{"type": "frame", "sample": sample}); err != nil {
			logging.LogDebug("[Stream] 发送失败", "error", err)
			return
		}
		sent++
	}

	logging.LogDebug("[Stream] 完成", "frames", sent)
	s.sendJSON(map[string]any{"type": "stream_end", "frames": sent})
}
