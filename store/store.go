// Package store 提供 core.Store 的实现：进程内内存存储与 Redis。
//
// 用于富化结果缓存与快照的键值持久化：
//
//	var s core.Store = store.NewMemoryStore()
//	var r core.Store, err = store.NewRedisStore(store.RedisOptions{Addr: "localhost:6379"})
package store

import "github.com/rushteam/tracksim/core"

// ErrNotFound 是 key 不存在时返回的错误。
var ErrNotFound = core.ErrStoreNotFound
