package catalog

import "context"

// StaticStore 直接提供内存中的快照，用于测试与嵌入式使用。
type StaticStore struct {
	Snapshot *Snapshot
}

func (s *StaticStore) Name() string { return "static" }

func (s *StaticStore) Load(_ context.Context) (*Snapshot, error) {
	if s.Snapshot == nil {
		return &Snapshot{}, nil
	}
	return s.Snapshot, nil
}
