package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rushteam/tracksim/core"
	"github.com/rushteam/tracksim/pipeline"
)

// 节点注册表。filter 与 rerank.dedup 在 config/builders 的 init 中注册；
// recall.ann、rank.rerank、postprocess.enrich 依赖曲库索引，由 builders.RegisterRuntime 注册。

// NodeBuilder 根据 YAML 中的节点 config 构建 Node。
type NodeBuilder = pipeline.NodeBuilder

var (
	registry   = make(map[string]NodeBuilder)
	registryMu sync.RWMutex
)

// Register 注册节点类型，同名覆盖。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = builder
}

// SupportedTypes 返回已注册的节点类型（排序）。
func SupportedTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// DefaultFactory 以当前注册表的快照构建 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range registry {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 检查每个节点都声明了已注册的类型，一次报告全部问题。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil || len(cfg.Pipeline.Nodes) == 0 {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeConfig, "pipeline has no nodes")
	}
	registryMu.RLock()
	defer registryMu.RUnlock()

	var problems []string
	for i, nc := range cfg.Pipeline.Nodes {
		switch _, ok := registry[nc.Type]; {
		case nc.Type == "":
			problems = append(problems, fmt.Sprintf("node %d: missing type", i))
		case !ok:
			problems = append(problems, fmt.Sprintf("node %d: unsupported type %q", i, nc.Type))
		}
	}
	if len(problems) > 0 {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeConfig,
			strings.Join(problems, "; ")+" (supported: "+strings.Join(slices.Sorted(maps.Keys(registry)), ", ")+")")
	}
	return nil
}
