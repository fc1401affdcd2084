// Package config 负责应用配置的加载与校验，以及 pipeline 节点的注册表。
//
// 配置分三层，后者覆盖前者：
//  1. 结构体默认值
//  2. YAML 配置文件（config.yaml，或 TRACKSIM_CONFIG 指定的路径）
//  3. 环境变量：TRACKSIM_ 前缀，双下划线表示层级，例如 TRACKSIM_CATALOG__BROAD_K=300
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/itunes"
	"github.com/rushteam/tracksim/logging"
	"github.com/rushteam/tracksim/mood"
	"github.com/rushteam/tracksim/pkg/validate"
	"github.com/rushteam/tracksim/store"
)

const (
	// EnvPrefix 是环境变量前缀。
	EnvPrefix = "TRACKSIM_"
	// ConfigPathEnvVar 指定配置文件路径。
	ConfigPathEnvVar = "TRACKSIM_CONFIG"
)

// DefaultConfigPaths 是未指定路径时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tracksim/config.yaml",
}

// AppConfig 是应用配置。
type AppConfig struct {
	Server    ServerConfig       `koanf:"server"`
	Catalog   CatalogConfig      `koanf:"catalog"`
	Mood      mood.Thresholds    `koanf:"mood"`
	Enrich    EnrichConfig       `koanf:"enrich"`
	ITunes    itunes.Config      `koanf:"itunes"`
	Extractor ExtractorConfig    `koanf:"extractor"`
	History   HistoryConfig      `koanf:"history"`
	Redis     store.RedisOptions `koanf:"redis"`
	Log       logging.Config     `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// RateLimit 为每个客户端 IP 每分钟的请求上限，0 表示不限
	RateLimit    int           `koanf:"rate_limit" validate:"gte=0"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// AdminToken 非空时 PATCH /weights 需要携带 Bearer token
	AdminToken  string   `koanf:"admin_token"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type CatalogConfig struct {
	// Source: file 读取 Dir 下的 JSON 快照；redis 读取 RedisPrefix 下的快照
	Source      string             `koanf:"source" validate:"oneof=file redis"`
	Dir         string             `koanf:"dir" validate:"required_if=Source file"`
	RedisPrefix string             `koanf:"redis_prefix"`
	Backend     string             `koanf:"backend" validate:"oneof=flat hnsw"`
	HNSW        catalog.HNSWParams `koanf:"hnsw"`
	BroadK      int                `koanf:"broad_k" validate:"gte=1"`
	MaxYearGap  int                `koanf:"max_year_gap" validate:"gte=0"`
	// GenreFile 为流派归类表 YAML，空表示使用内置表
	GenreFile string `koanf:"genre_file"`
	// PipelineFile 为节点链 YAML，空表示使用默认节点链
	PipelineFile string               `koanf:"pipeline_file"`
	Weights      core.DistanceWeights `koanf:"weights"`
	ExcludeSeeds bool                 `koanf:"exclude_seeds"`
	// Warmup 为 true 时启动即构建索引，否则首次查询时构建
	Warmup bool `koanf:"warmup"`
}

type EnrichConfig struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout"`
	// Cache: none / memory / redis
	Cache       string        `koanf:"cache" validate:"oneof=none memory redis"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1,lte=64"`
}

type ExtractorConfig struct {
	// Endpoint 为空时，不在曲库中的种子无法提取特征，只能被跳过
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout"`
}

type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    120,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			Source:      "file",
			Dir:         "data",
			RedisPrefix: "tracksim:snapshot",
			Backend:     "flat",
			HNSW:        catalog.DefaultHNSWParams(),
			BroadK:      200,
			MaxYearGap:  20,
			Weights:     core.DefaultDistanceWeights(),
		},
		Mood: mood.DefaultThresholds(),
		Enrich: EnrichConfig{
			Enabled:     true,
			Timeout:     3 * time.Second,
			Cache:       "memory",
			CacheTTL:    24 * time.Hour,
			Concurrency: 8,
		},
		ITunes:    itunes.DefaultConfig(),
		Extractor: ExtractorConfig{Timeout: 30 * time.Second},
		History:   HistoryConfig{Path: "data/history.db"},
		Redis:     store.RedisOptions{Addr: "localhost:6379"},
		Log:       logging.Config{Level: "info", Format: "json", Timestamp: true},
	}
}

// Load 按 默认值 → 配置文件 → 环境变量 的顺序加载并校验配置。
// path 为空时依次查找 TRACKSIM_CONFIG 与 DefaultConfigPaths，都不存在则跳过文件层。
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "load defaults")
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "load environment")
	}

	if err := processSliceFields(k); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "process slice fields")
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置。
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.WrapDomainError(core.ModuleService, core.ErrorCodeConfig, err, "invalid config")
	}
	if c.Catalog.Source == "redis" && c.Redis.Addr == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeConfig, "catalog.source=redis requires redis.addr")
	}
	if c.Enrich.Cache == "redis" && c.Redis.Addr == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeConfig, "enrich.cache=redis requires redis.addr")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths 是允许以逗号分隔字符串给出的列表字段（来自环境变量时）。
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc 把环境变量名转为 koanf 路径：
// TRACKSIM_CATALOG__BROAD_K -> catalog.broad_k，TRACKSIM_CONFIG 本身不参与映射。
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// String 便于日志输出，不含敏感字段。
func (c *AppConfig) String() string {
	return fmt.Sprintf("server=%s catalog=%s/%s backend=%s enrich=%v cache=%s history=%v",
		c.Server.Addr, c.Catalog.Source, c.Catalog.Dir, c.Catalog.Backend, c.Enrich.Enabled, c.Enrich.Cache, c.History.Enabled)
}
