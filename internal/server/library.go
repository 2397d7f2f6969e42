package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ani-viewer/internal/animate"
	"ani-viewer/internal/catalog"
	"ani-viewer/internal/config"
	"ani-viewer/internal/index"
	"ani-viewer/internal/loader"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrNotLoaded      = errors.New("library directory not loaded")
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrStateNotFound  = errors.New("state not found")
	ErrNotMovieClip   = errors.New("symbol is not a movie clip")
)

// libraryKey 解码缓存的键，文件变化后自然失效
type libraryKey struct {
	Path    string
	Size    int64
	ModTime int64
}

func keyOf(e catalog.Entry) libraryKey {
	return libraryKey{Path: e.Path, Size: e.Size, ModTime: e.ModTime.UnixNano()}
}

// LibraryServer 动画库服务核心
type LibraryServer struct {
	basePath string
	loaded   bool
	cfg      config.Config

	mu        sync.RWMutex
	catalog   *catalog.Catalog
	summaries map[string]*index.Entry // 库名 -> 概要
	failures  map[string]string       // 库名 -> 解码错误
	libraries *lru.Cache[libraryKey, *loader.Result]

	// 概要缓存构建状态
	cacheBuilding bool
	cacheProgress int
	cacheTotal    int
	cacheCurrent  int
}

// NewLibraryServer 创建服务器
func NewLibraryServer(cfg config.Config) *LibraryServer {
	size := cfg.LRUSize
	if size <= 0 {
		size = config.DefaultLRUSize
	}
	libraries, err := lru.NewWithEvict(size, func(key libraryKey, _ *loader.Result) {
		logging.LogDebug("[Library] 移出解码缓存", "path", key.Path)
	})
	if err != nil {
		// 只有 size <= 0 时出错
		panic(err)
	}
	return &LibraryServer{
		basePath:  cfg.LibraryPath,
		cfg:       cfg,
		summaries: make(map[string]*index.Entry),
		failures:  make(map[string]string),
		libraries: libraries,
	}
}

// Load 扫描库目录
func (s *LibraryServer) Load() error {
	if s.basePath == "" {
		return fmt.Errorf("库目录未设置")
	}
	if s.cfg.CacheDir != "" {
		if err := index.SetCacheDir(s.cfg.CacheDir); err != nil {
			return err
		}
	}
	logging.LogInfo("[Library] 缓存目录: " + index.GetCacheDir())

	c := catalog.New(s.basePath)
	if err := c.Scan(); err != nil {
		return fmt.Errorf("目录扫描失败: %w", err)
	}

	s.mu.Lock()
	s.catalog = c
	s.loaded = true
	s.mu.Unlock()

	logging.LogInfo(fmt.Sprintf("[Library] ✓ 已加载 %d 个库", c.Len()), "path", s.basePath)
	return nil
}

// decodeOptions 解码选项，每个库使用独立的纹理注册表
func (s *LibraryServer) decodeOptions() animate.Options {
	return animate.Options{MaxBlobSize: s.cfg.MaxBlobSize}
}

// BuildSummaryCache 为目录中所有库构建概要缓存，返回成功数量
// 已有缓存的库直接读取，否则解码后写入缓存。
func (s *LibraryServer) BuildSummaryCache() int {
	s.mu.RLock()
	loaded := s.loaded
	var entries []catalog.Entry
	if s.catalog != nil {
		entries = append(entries, s.catalog.Entries...)
	}
	s.mu.RUnlock()
	if !loaded {
		return 0
	}

	total := len(entries)
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers
	}
	if workers > config.MaxWorkers {
		workers = config.MaxWorkers
	}
	if workers > total {
		workers = total
	}

	s.mu.Lock()
	s.cacheBuilding = true
	s.cacheTotal = total
	s.cacheCurrent = 0
	s.cacheProgress = 0
	s.mu.Unlock()

	if total == 0 {
		s.finishBuild()
		return 0
	}

	logging.LogInfo("[Summary] 开始构建", "workers", workers, "libraries", total)
	buildStart := time.Now()

	workChan := make(chan catalog.Entry, total)
	for _, e := range entries {
		workChan <- e
	}
	close(workChan)

	type result struct {
		name  string
		entry *index.Entry
		err   error
	}
	resultChan := make(chan result, total)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range workChan {
				entry, err := s.summarize(e)
				resultChan <- result{name: e.Name, entry: entry, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	cached := 0
	processed := 0
	for res := range resultChan {
		processed++
		s.mu.Lock()
		if res.err != nil {
			s.failures[res.name] = res.err.Error()
			delete(s.summaries, res.name)
		} else {
			s.summaries[res.name] = res.entry
			delete(s.failures, res.name)
			cached++
		}
		s.cacheCurrent = processed
		s.cacheProgress = processed * 100 / total
		s.mu.Unlock()

		if res.err != nil {
			logging.LogWarn("[Summary] 解码失败", "library", res.name, "error", res.err)
		}
	}

	s.finishBuild()
	elapsed := time.Since(buildStart)
	logging.LogInfo(fmt.Sprintf("[Summary] ✓ 构建完成: %d/%d", cached, total),
		"duration", elapsed.Round(time.Millisecond))
	return cached
}

func (s *LibraryServer) finishBuild() {
	s.mu.Lock()
	s.cacheBuilding = false
	s.cacheProgress = 100
	s.mu.Unlock()
}

// summarize 读取或生成单个库的概要
func (s *LibraryServer) summarize(e catalog.Entry) (*index.Entry, error) {
	digest, err := loader.HashFile(e.Path)
	if err != nil {
		return nil, err
	}

	cached, err := index.Load(digest)
	if err == nil {
		logging.LogDebug("[IndexCache] 命中", "library", e.Name)
		return cached, nil
	}
	if errors.Is(err, index.ErrStale) || errors.Is(err, index.ErrCorrupt) {
		logging.LogDebug("[IndexCache] 失效", "library", e.Name, "error", err)
		if err := index.Remove(digest); err != nil {
			logging.LogWarn("[IndexCache] 删除失败", "library", e.Name, "error", err)
		}
	}

	res, err := s.load(e)
	if err != nil {
		return nil, err
	}
	entry := newIndexEntry(e.Name, res)
	if err := index.Save(res.Digest, entry); err != nil {
		logging.LogWarn("[IndexCache] 保存失败", "library", e.Name, "error", err)
	}
	return entry, nil
}

func newIndexEntry(name string, res *loader.Result) *index.Entry {
	return &index.Entry{
		Name:        name,
		Digest:      res.Digest.String(),
		Size:        res.Size,
		Compression: res.Compression.String(),
		DecodeNanos: res.Elapsed.Nanoseconds(),
		Summary:     res.Library.Summarize(),
	}
}

// load 解码库文件并放入 LRU
func (s *LibraryServer) load(e catalog.Entry) (*loader.Result, error) {
	key := keyOf(e)
	if res, ok := s.libraries.Get(key); ok {
		return res, nil
	}
	res, err := loader.Load(e.Path, s.decodeOptions())
	if err != nil {
		return nil, err
	}
	s.libraries.Add(key, res)
	return res, nil
}

func (s *LibraryServer) find(name string) (catalog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded || s.catalog == nil {
		return catalog.Entry{}, ErrNotLoaded
	}
	return s.catalog.Find(name)
}

// ==================== 查询方法 ====================

// GetLibrary 返回解码后的库，优先使用 LRU
func (s *LibraryServer) GetLibrary(name string) (*loader.Result, error) {
	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	res, err := s.load(e)
	if err != nil {
		s.mu.Lock()
		s.failures[name] = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.summaries[name]; !ok {
		s.summaries[name] = newIndexEntry(name, res)
	}
	delete(s.failures, name)
	s.mu.Unlock()
	return res, nil
}

// GetSummary 返回库概要，缓存中没有时现场解码
func (s *LibraryServer) GetSummary(name string) (*index.Entry, error) {
	s.mu.RLock()
	entry, ok := s.summaries[name]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	entry, err = s.summarize(e)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.summaries[name] = entry
	s.mu.Unlock()
	return entry, nil
}

// GetSymbol 按 id 查找符号
func (s *LibraryServer) GetSymbol(name string, id int) (*loader.Result, models.Symbol, error) {
	res, err := s.GetLibrary(name)
	if err != nil {
		return nil, nil, err
	}
	sym, ok := res.Library.SymbolByID(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrSymbolNotFound, id)
	}
	return res, sym, nil
}

// GetState 查找影片剪辑的命名状态
func (s *LibraryServer) GetState(name string, id int, state string) (*loader.Result, *models.MovieClipSymbol, models.StateWithStartTime, error) {
	res, sym, err := s.GetSymbol(name, id)
	if err != nil {
		return nil, nil, models.StateWithStartTime{}, err
	}
	mc, ok := sym.(*models.MovieClipSymbol)
	if !ok {
		return nil, nil, models.StateWithStartTime{}, fmt.Errorf("%w: %d is %s", ErrNotMovieClip, id, sym.Kind())
	}
	entry, ok := mc.States[state]
	if !ok || entry.State == nil {
		return nil, nil, models.StateWithStartTime{}, fmt.Errorf("%w: %q", ErrStateNotFound, state)
	}
	return res, mc, entry, nil
}

// ListLibraries 列出目录中的库及其概要状态
func (s *LibraryServer) ListLibraries() []LibraryInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return []LibraryInfo{}
	}

	list := make([]LibraryInfo, 0, s.catalog.Len())
	for _, e := range s.catalog.Entries {
		info := LibraryInfo{
			Name:        e.Name,
			FileName:    e.FileName,
			Size:        e.Size,
			ModTime:     e.ModTime.Unix(),
			Compression: e.Compression.String(),
			Error:       s.failures[e.Name],
		}
		if sum, ok := s.summaries[e.Name]; ok {
			info.Summarized = true
			info.FrameRate = sum.Summary.FrameRate
			info.SymbolCount = sum.Summary.SymbolCount
		}
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// GetCacheStatus 获取缓存构建状态
func (s *LibraryServer) GetCacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return CacheStatus{Status: "not_loaded"}
	}

	status := CacheStatus{
		Status:   "ready",
		Progress: 100,
		Total:    s.catalog.Len(),
		Current:  s.catalog.Len(),
		Cached:   len(s.summaries),
		Failed:   len(s.failures),
		Decoded:  s.libraries.Len(),
	}
	if s.cacheBuilding {
		status.Status = "building"
		status.Progress = s.cacheProgress
		status.Total = s.cacheTotal
		status.Current = s.cacheCurrent
	}
	return status
}

// GetConfig 获取配置
func (s *LibraryServer) GetConfig() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := Config{
		LibraryPath: s.basePath,
		CacheDir:    index.GetCacheDir(),
		Loaded:      s.loaded,
		LRUSize:     s.cfg.LRUSize,
		Workers:     s.cfg.Workers,
	}
	if s.loaded && s.catalog != nil {
		cfg.LibraryCount = s.catalog.Len()
		cfg.TotalSize = s.catalog.TotalSize()
	}
	return cfg
}

// IsLoaded 是否已加载
func (s *LibraryServer) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// GetLibraryPath 当前库目录
func (s *LibraryServer) GetLibraryPath() string {
	return s.basePath
}

// Close 清空解码缓存
func (s *LibraryServer) Close() {
	s.libraries.Purge()
}

// ==================== 数据类型 ====================

// LibraryInfo 库列表项
type LibraryInfo struct {
	Name        string  `json:"name"`
	FileName    string  `json:"fileName"`
	Size        int64   `json:"size"`
	ModTime     int64   `json:"modTime"`
	Compression string  `json:"compression"`
	Summarized  bool    `json:"summarized"`
	FrameRate   float64 `json:"frameRate,omitempty"`
	SymbolCount int     `json:"symbolCount,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// CacheStatus 缓存状态
type CacheStatus struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Current  int    `json:"current"`
	Cached   int    `json:"cached"`
	Failed   int    `json:"failed"`
	Decoded  int    `json:"decoded"`
}

// Config 配置
type Config struct {
	LibraryPath  string `json:"libraryPath"`
	CacheDir     string `json:"cacheDir"`
	Loaded       bool   `json:"loaded"`
	LRUSize      int    `json:"lruSize"`
	Workers      int    `json:"workers"`
	LibraryCount int    `json:"libraryCount,omitempty"`
	TotalSize    int64  `json:"totalSize,omitempty"`
}
