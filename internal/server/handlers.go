package server

import (
	"errors"
	"strconv"
	"sync"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/catalog"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/models"

	"github.com/kataras/iris/v12"
)

// serverCache 单个目录的服务器缓存
type serverCache struct {
	srv  *LibraryServer
	hash string // libraryCount-totalSize 用于验证缓存有效性
}

// Handlers API 处理器
type Handlers struct {
	srv *LibraryServer
	mu  sync.RWMutex

	// 路径历史记录（最多保留 10 个）
	pathHistory []string

	// 路径 -> LibraryServer 缓存
	servers map[string]*serverCache
}

const maxPathHistory = 10

// NewHandlers 创建处理器
func NewHandlers(srv *LibraryServer) *Handlers {
	h := &Handlers{
		srv:         srv,
		pathHistory: []string{},
		servers:     make(map[string]*serverCache),
	}
	if srv.IsLoaded() {
		h.addToPathHistory(srv.GetLibraryPath())
	}
	return h
}

// Server 当前服务器
func (h *Handlers) Server() *LibraryServer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.srv
}

// computeServerHash 计算目录缓存的 hash 值
func computeServerHash(srv *LibraryServer) string {
	cfg := srv.GetConfig()
	return strconv.Itoa(cfg.LibraryCount) + "-" + strconv.FormatInt(cfg.TotalSize, 10)
}

// addToPathHistory 添加路径到历史记录
func (h *Handlers) addToPathHistory(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// 移除重复项
	var newHistory []string
	for _, p := range h.pathHistory {
		if p != path {
			newHistory = append(newHistory, p)
		}
	}

	// 添加到开头
	h.pathHistory = append([]string{path}, newHistory...)

	if len(h.pathHistory) > maxPathHistory {
		h.pathHistory = h.pathHistory[:maxPathHistory]
	}
}

func (h *Handlers) history() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.pathHistory))
	copy(out, h.pathHistory)
	return out
}

// writeError 按错误类型返回状态码
func writeError(ctx iris.Context, err error) {
	status := iris.StatusInternalServerError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ErrSymbolNotFound),
		errors.Is(err, ErrStateNotFound):
		status = iris.StatusNotFound
	case errors.Is(err, ErrNotMovieClip):
		status = iris.StatusBadRequest
	case errors.Is(err, ErrNotLoaded):
		status = iris.StatusServiceUnavailable
	case animate.IsFormatError(err):
		status = iris.StatusUnprocessableEntity
	}
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{"error": err.Error()})
}

// ==================== API (v1) ====================

// GetConfig 获取配置
// GET /api/v1/config
func (h *Handlers) GetConfig(ctx iris.Context) {
	srv := h.Server()
	cfg := srv.GetConfig()

	result := iris.Map{
		"libraryPath": cfg.LibraryPath,
		"cacheDir":    cfg.CacheDir,
		"loaded":      cfg.Loaded,
		"lruSize":     cfg.LRUSize,
		"workers":     cfg.Workers,
		"pathHistory": h.history(),
	}
	if cfg.Loaded {
		result["libraryCount"] = cfg.LibraryCount
		result["totalSize"] = cfg.TotalSize
		result["cacheStatus"] = srv.GetCacheStatus()
	}
	ctx.JSON(result)
}

// SetConfig 切换库目录
// POST /api/v1/config
func (h *Handlers) SetConfig(ctx iris.Context) {
	var req struct {
		LibraryPath string `json:"libraryPath"`
		Debug       *bool  `json:"debug"`
	}
	if err := ctx.ReadJSON(&req); err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "无效的 JSON"})
		return
	}

	if req.Debug != nil {
		logging.SetDebugMode(*req.Debug)
	}

	if req.LibraryPath == "" {
		cfg := h.Server().GetConfig()
		ctx.JSON(iris.Map{
			"libraryPath": cfg.LibraryPath,
			"loaded":      cfg.Loaded,
			"debug":       logging.IsDebugMode(),
		})
		return
	}

	// 先在锁外扫描目录，扫描期间其他请求继续使用当前服务器
	cfg := h.Server().cfg
	cfg.LibraryPath = req.LibraryPath
	fresh := NewLibraryServer(cfg)
	if err := fresh.Load(); err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{
			"libraryPath": req.LibraryPath,
			"loaded":      false,
			"error":       "无法加载指定目录: " + err.Error(),
		})
		return
	}

	h.mu.Lock()
	current := h.srv

	// 保存当前服务器到缓存（如果已加载）
	if current.IsLoaded() {
		currentPath := current.GetLibraryPath()
		if currentPath != "" && currentPath != req.LibraryPath {
			h.servers[currentPath] = &serverCache{srv: current, hash: computeServerHash(current)}
		}
	}

	// 目录内容未变时复用缓存的服务器
	next := fresh
	fromCache := false
	if cached, ok := h.servers[req.LibraryPath]; ok {
		if computeServerHash(fresh) == cached.hash {
			next = cached.srv
			fromCache = true
		}
		delete(h.servers, req.LibraryPath)
	}
	h.srv = next
	h.mu.Unlock()

	h.addToPathHistory(req.LibraryPath)

	// 不是从缓存恢复时需要构建概要缓存
	if !fromCache {
		go next.BuildSummaryCache()
	}

	nextCfg := next.GetConfig()
	ctx.JSON(iris.Map{
		"libraryPath":  req.LibraryPath,
		"loaded":       true,
		"libraryCount": nextCfg.LibraryCount,
		"cacheStatus":  next.GetCacheStatus(),
		"pathHistory":  h.history(),
		"fromCache":    fromCache,
	})
}

// GetCacheStatus 获取缓存构建状态
// GET /api/v1/cache/status
func (h *Handlers) GetCacheStatus(ctx iris.Context) {
	ctx.JSON(h.Server().GetCacheStatus())
}

// ListLibraries 库列表
// GET /api/v1/libraries
func (h *Handlers) ListLibraries(ctx iris.Context) {
	ctx.JSON(iris.Map{"libraries": h.Server().ListLibraries()})
}

// GetLibrary 库概要
// GET /api/v1/libraries/{name}
func (h *Handlers) GetLibrary(ctx iris.Context) {
	entry, err := h.Server().GetSummary(ctx.Params().Get("name"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{
		"name":        entry.Name,
		"digest":      entry.Digest,
		"size":        entry.Size,
		"compression": entry.Compression,
		"decodeMs":    float64(entry.DecodeNanos) / 1e6,
		"summary":     entry.Summary,
	})
}

// GetSymbol 符号详情
// GET /api/v1/libraries/{name}/symbols/{id}
func (h *Handlers) GetSymbol(ctx iris.Context) {
	id, err := ctx.Params().GetInt("id")
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "无效的符号 id"})
		return
	}
	_, sym, err := h.Server().GetSymbol(ctx.Params().Get("name"), id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{
		"kind":    sym.Kind(),
		"symbol":  sym,
		"summary": models.SummarizeSymbol(sym),
	})
}

// GetState 状态的逐深度帧列表
// GET /api/v1/libraries/{name}/symbols/{id}/states/{state}
func (h *Handlers) GetState(ctx iris.Context) {
	id, err := ctx.Params().GetInt("id")
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "无效的符号 id"})
		return
	}
	name := ctx.Params().Get("name")
	state := ctx.Params().Get("state")
	_, _, entry, err := h.Server().GetState(name, id, state)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(NewStateDetail(name, id, state, entry))
}

// StateDetail 状态详情
type StateDetail struct {
	Library       string       `json:"library"`
	Symbol        int          `json:"symbol"`
	Name          string       `json:"name"`
	StartTime     int          `json:"startTime"`
	TotalTime     int          `json:"totalTime"`
	LoopStartTime int          `json:"loopStartTime"`
	KeyTimes      []int        `json:"keyTimes"`
	Depths        []DepthTrack `json:"depths"`
}

// DepthTrack 一条深度轨道上的全部帧
type DepthTrack struct {
	Depth  int            `json:"depth"`
	Frames []models.Frame `json:"frames"`
}

// NewStateDetail 展开状态中的所有轨道
func NewStateDetail(library string, symbol int, name string, entry models.StateWithStartTime) StateDetail {
	st := entry.State
	detail := StateDetail{
		Library:       library,
		Symbol:        symbol,
		Name:          name,
		StartTime:     entry.StartTime,
		TotalTime:     st.TotalTime,
		LoopStartTime: st.LoopStartTime,
		KeyTimes:      st.KeyTimes(),
		Depths:        make([]DepthTrack, len(st.Timelines)),
	}
	for depth := range st.Timelines {
		frames := st.Timelines[depth].Frames()
		if frames == nil {
			frames = []models.Frame{}
		}
		detail.Depths[depth] = DepthTrack{Depth: depth, Frames: frames}
	}
	return detail
}

// ==================== 路由注册 ====================

// RegisterRoutes 注册路由
func RegisterRoutes(app *iris.Application, h *Handlers) {
	v1 := app.Party("/api/v1")
	{
		v1.Get("/config", h.GetConfig)
		v1.Post("/config", h.SetConfig)
		v1.Get("/cache/status", h.GetCacheStatus)
		v1.Get("/libraries", h.ListLibraries)
		v1.Get("/libraries/{name}", h.GetLibrary)
		v1.Get("/libraries/{name}/symbols/{id:int}", h.GetSymbol)
		v1.Get("/libraries/{name}/symbols/{id:int}/states/{state}", h.GetState)
		v1.Get("/stream", h.HandleWebSocket) // WebSocket 帧流
	}
}
