// Package handlers 提供 neffos 命名空间形式的帧流接口
package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"ani-viewer/internal/logging"
	"ani-viewer/internal/server"

	"github.com/kataras/iris/v12/websocket"
	"github.com/kataras/neffos"
)

// Namespace 命名空间名称
const Namespace = "stream"

// StreamSession WebSocket 流会话
type StreamSession struct {
	library   string
	symbol    int
	state     string
	frameRate float64
	cursor    *server.Cursor
	playing   bool
	speed     float64
	stop      chan struct{}
	mu        sync.Mutex
}

// WebSocketHandler WebSocket 处理器
type WebSocketHandler struct {
	current  func() *server.LibraryServer
	sessions map[*neffos.Conn]*StreamSession
	mu       sync.RWMutex
}

// NewWebSocketHandler 创建 WebSocket 处理器
// current 返回当前使用的服务器，库目录切换后也能拿到新的实例。
func NewWebSocketHandler(current func() *server.LibraryServer) *WebSocketHandler {
	return &WebSocketHandler{
		current:  current,
		sessions: make(map[*neffos.Conn]*StreamSession),
	}
}

func (ws *WebSocketHandler) session(c *neffos.NSConn) *StreamSession {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.sessions[c.Conn]
}

func emitJSON(c *neffos.NSConn, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.LogError("[NS] 编码失败", "event", event, "error", err)
		return
	}
	c.Emit(event, data)
}

// OnConnect 连接建立
func (ws *WebSocketHandler) OnConnect(c *neffos.NSConn, msg neffos.Message) error {
	logging.LogInfo("[NS] 客户端连接: " + c.Conn.ID())
	return nil
}

// OnDisconnect 连接断开
func (ws *WebSocketHandler) OnDisconnect(c *neffos.NSConn, msg neffos.Message) error {
	logging.LogInfo("[NS] 客户端断开: " + c.Conn.ID())
	ws.mu.Lock()
	session := ws.sessions[c.Conn]
	delete(ws.sessions, c.Conn)
	ws.mu.Unlock()
	if session != nil {
		session.pause()
	}
	return nil
}

// OnOpen 打开一个影片剪辑状态
func (ws *WebSocketHandler) OnOpen(c *neffos.NSConn, msg neffos.Message) error {
	var req struct {
		Library string `json:"library"`
		Symbol  int    `json:"symbol"`
		State   string `json:"state"`
	}
	if err := msg.Unmarshal(&req); err != nil {
		return err
	}

	res, _, entry, err := ws.current().GetState(req.Library, req.Symbol, req.State)
	if err != nil {
		emitJSON(c, "error", map[string]string{"error": err.Error()})
		return nil
	}

	session := &StreamSession{
		library:   req.Library,
		symbol:    req.Symbol,
		state:     req.State,
		frameRate: res.Library.FrameRate,
		cursor:    server.NewCursor(entry),
		speed:     1.0,
	}

	ws.mu.Lock()
	if prev := ws.sessions[c.Conn]; prev != nil {
		prev.pause()
	}
	ws.sessions[c.Conn] = session
	ws.mu.Unlock()

	emitJSON(c, "opened", map[string]any{
		"library":   req.Library,
		"symbol":    req.Symbol,
		"state":     req.State,
		"frameRate": session.frameRate,
		"ticks":     session.cursor.Len(),
		"depths":    len(entry.State.Timelines),
	})
	return nil
}

// OnPlay 开始播放
func (ws *WebSocketHandler) OnPlay(c *neffos.NSConn, msg neffos.Message) error {
	session := ws.session(c)
	if session == nil {
		return nil
	}

	session.mu.Lock()
	if session.playing {
		session.mu.Unlock()
		return nil
	}
	session.playing = true
	stop := make(chan struct{})
	session.stop = stop
	session.mu.Unlock()

	go ws.streamFrames(c, session, stop)
	return nil
}

// OnPause 暂停播放
func (ws *WebSocketHandler) OnPause(c *neffos.NSConn, msg neffos.Message) error {
	if session := ws.session(c); session != nil {
		session.pause()
	}
	return nil
}

func (s *StreamSession) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		close(s.stop)
		s.playing = false
	}
}

// OnSeek 跳转，position 为 0 到 1 的比例，或 time 为关键帧时间
func (ws *WebSocketHandler) OnSeek(c *neffos.NSConn, msg neffos.Message) error {
	var req struct {
		Position *float64 `json:"position"`
		Time     *int     `json:"time"`
	}
	if err := msg.Unmarshal(&req); err != nil {
		return err
	}

	if session := ws.session(c); session != nil {
		session.mu.Lock()
		switch {
		case req.Time != nil:
			session.cursor.Seek(*req.Time)
		case req.Position != nil:
			session.cursor.SeekFraction(*req.Position)
		}
		session.mu.Unlock()
	}
	return nil
}

// OnSpeed 设置速度
func (ws *WebSocketHandler) OnSpeed(c *neffos.NSConn, msg neffos.Message) error {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := msg.Unmarshal(&req); err != nil {
		return err
	}

	if session := ws.session(c); session != nil && req.Speed > 0 {
		session.mu.Lock()
		session.speed = req.Speed
		session.mu.Unlock()
	}
	return nil
}

// streamFrames 按帧率发送取样，速度变更在下一帧生效
func (ws *WebSocketHandler) streamFrames(c *neffos.NSConn, session *StreamSession, stop chan struct{}) {
	for {
		session.mu.Lock()
		speed := session.speed
		session.mu.Unlock()

		select {
		case <-stop:
			return
		case <-time.After(server.TickInterval(session.frameRate, speed)):
		}

		session.mu.Lock()
		sample, ok := session.cursor.Next()
		progress := session.cursor.Progress()
		if !ok {
			session.playing = false
			session.mu.Unlock()
			emitJSON(c, "ended", map[string]any{"library": session.library, "state": session.state})
			return
		}
		session.mu.Unlock()

		emitJSON(c, "frame", sample)
		emitJSON(c, "progress", map[string]any{"position": progress, "index": sample.Index})
	}
}

// RegisterEvents 注册 WebSocket 事件
func (ws *WebSocketHandler) RegisterEvents() websocket.Namespaces {
	return websocket.Namespaces{
		Namespace: websocket.Events{
			websocket.OnNamespaceConnected:  ws.OnConnect,
			websocket.OnNamespaceDisconnect: ws.OnDisconnect,
			"open":                          ws.OnOpen,
			"play":                          ws.OnPlay,
			"pause":                         ws.OnPause,
			"seek":                          ws.OnSeek,
			"speed":                         ws.OnSpeed,
		},
	}
}
