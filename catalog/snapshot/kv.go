package snapshot

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
)

// KVStore 把快照保存在 core.Store 中（生产环境为 Redis），
// 键为 <Prefix>:vectors 与 <Prefix>:metadata。
type KVStore struct {
	Store  core.Store
	Prefix string
}

func NewKVStore(s core.Store, prefix string) *KVStore {
	if prefix == "" {
		prefix = "tracksim:snapshot"
	}
	return &KVStore{Store: s, Prefix: prefix}
}

func (s *KVStore) Name() string { return s.Store.Name() + ":" + s.Prefix }

func (s *KVStore) keys() (string, string) {
	return s.Prefix + ":vectors", s.Prefix + ":metadata"
}

func (s *KVStore) Load(ctx context.Context) (*catalog.Snapshot, error) {
	vk, mk := s.keys()
	vals, err := s.Store.BatchGet(ctx, []string{vk, mk})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, err, "read snapshot from %s", s.Store.Name())
	}
	vraw, ok := vals[vk]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeConfig, "snapshot key "+vk+" not found")
	}
	mraw, ok := vals[mk]
	if !ok {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeConfig, "snapshot key "+mk+" not found")
	}
	snap := &catalog.Snapshot{}
	if err := json.Unmarshal(vraw, &snap.Vectors); err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "decode %s", vk)
	}
	if err := json.Unmarshal(mraw, &snap.Tracks); err != nil {
		return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "decode %s", mk)
	}
	return snap, nil
}

// Save 一次性写入两个键。
func (s *KVStore) Save(ctx context.Context, snap *catalog.Snapshot) error {
	vraw, err := json.Marshal(snap.Vectors)
	if err != nil {
		return err
	}
	mraw, err := json.Marshal(snap.Tracks)
	if err != nil {
		return err
	}
	vk, mk := s.keys()
	return s.Store.BatchSet(ctx, map[string][]byte{vk: vraw, mk: mraw})
}
