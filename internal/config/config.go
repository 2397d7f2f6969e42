package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// 动画库文件常量
	Magic      = "KORGEANI"
	MagicSize  = 8
	MaxVersion = 1

	// 符号类型标签
	SymbolTypeEmpty     = 0
	SymbolTypeSound     = 1
	SymbolTypeText      = 2
	SymbolTypeShape     = 3
	SymbolTypeBitmap    = 4
	SymbolTypeMovieClip = 5

	// 矢量路径存在标记
	PathAbsent  = 0
	PathPresent = 1

	// 帧标志位
	FrameHasUID    = 1 << 0
	FrameHasName   = 1 << 1
	FrameHasAlpha  = 1 << 2
	FrameHasMatrix = 1 << 3

	// 原始图集数据块上限 (256MB)
	DefaultMaxBlobSize = 256 << 20
)

// 文件扩展名
const (
	ExtPlain = ".ani"
	ExtZstd  = ".ani.zst"
	ExtLZ4   = ".ani.lz4"
)

var (
	// 默认配置
	DefaultLibraryPath = "."
	DefaultCacheDir    = ".ani_cache"
	Host               = "0.0.0.0"
	Port               = 8000
	DefaultLRUSize     = 16
	DefaultWorkers     = 2
	MaxWorkers         = 4
)

// Config 服务配置，可由 YAML 文件加载，命令行参数再覆盖
type Config struct {
	LibraryPath string `yaml:"library_path"`
	CacheDir    string `yaml:"cache_dir"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxBlobSize int    `yaml:"max_blob_size"`
	LRUSize     int    `yaml:"lru_size"`
	Workers     int    `yaml:"workers"`
	Debug       bool   `yaml:"debug"`
}

// Default 返回默认配置
func Default() Config {
	return Config{
		LibraryPath: DefaultLibraryPath,
		CacheDir:    DefaultCacheDir,
		Host:        Host,
		Port:        Port,
		MaxBlobSize: DefaultMaxBlobSize,
		LRUSize:     DefaultLRUSize,
		Workers:     DefaultWorkers,
	}
}

// Load 读取 YAML 配置文件，未出现的字段保留默认值
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.MaxBlobSize <= 0 {
		errs = append(errs, fmt.Errorf("max_blob_size must be positive, got %d", c.MaxBlobSize))
	}
	if c.LRUSize <= 0 {
		errs = append(errs, fmt.Errorf("lru_size must be positive, got %d", c.LRUSize))
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Workers > MaxWorkers {
		c.Workers = MaxWorkers // 限制并发，解码主要受 IO 限制
	}
	return errors.Join(errs...)
}
