package config

import (
	"github.com/spf13/pflag"
)

// Flags 命令行参数，未显式设置的参数不覆盖配置文件
type Flags struct {
	ConfigPath string
	values     Config
	set        *pflag.FlagSet
}

// BindFlags 在 fs 上注册服务参数，默认值取自 Default()
func BindFlags(fs *pflag.FlagSet) *Flags {
	def := Default()
	f := &Flags{values: def, set: fs}
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "YAML config file")
	fs.StringVarP(&f.values.LibraryPath, "path", "p", def.LibraryPath, "directory containing .ani libraries")
	fs.StringVar(&f.values.CacheDir, "cache-dir", def.CacheDir, "summary cache directory")
	fs.StringVar(&f.values.Host, "host", def.Host, "listen host")
	fs.IntVar(&f.values.Port, "port", def.Port, "listen port")
	fs.IntVar(&f.values.MaxBlobSize, "max-blob-size", def.MaxBlobSize, "largest atlas blob accepted, in bytes")
	fs.IntVar(&f.values.LRUSize, "lru-size", def.LRUSize, "decoded libraries kept in memory")
	fs.IntVar(&f.values.Workers, "workers", def.Workers, "summary cache build workers")
	fs.BoolVar(&f.values.Debug, "debug", def.Debug, "enable debug logging")
	return f
}

// Resolve 读取配置文件 (如有)，再用显式设置的参数覆盖
func (f *Flags) Resolve() (Config, error) {
	cfg := Default()
	if f.ConfigPath != "" {
		loaded, err := Load(f.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	override := map[string]func(){
		"path":          func() { cfg.LibraryPath = f.values.LibraryPath },
		"cache-dir":     func() { cfg.CacheDir = f.values.CacheDir },
		"host":          func() { cfg.Host = f.values.Host },
		"port":          func() { cfg.Port = f.values.Port },
		"max-blob-size": func() { cfg.MaxBlobSize = f.values.MaxBlobSize },
		"lru-size":      func() { cfg.LRUSize = f.values.LRUSize },
		"workers":       func() { cfg.Workers = f.values.Workers },
		"debug":         func() { cfg.Debug = f.values.Debug },
	}
	for name, apply := range override {
		if f.set.Changed(name) {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
