// Package snapshot 提供曲库快照的持久化实现：本地 JSON 文件与键值存储（Redis / 内存）。
//
// 快照由两个对齐的制品组成：vectors（[][]float64）与 metadata（[]core.Track）。
package snapshot

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/rushteam/tracksim/catalog"
	"github.com/rushteam/tracksim/core"
)

const (
	DefaultVectorsFile  = "vectors.json"
	DefaultMetadataFile = "metadata.json"
)

// FileStore 从目录中读取 vectors.json 与 metadata.json。
type FileStore struct {
	Dir          string
	VectorsFile  string
	MetadataFile string
}

// NewFileStore 使用默认文件名。
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, VectorsFile: DefaultVectorsFile, MetadataFile: DefaultMetadataFile}
}

func (s *FileStore) Name() string { return "file:" + s.Dir }

func (s *FileStore) paths() (string, string) {
	vf, mf := s.VectorsFile, s.MetadataFile
	if vf == "" {
		vf = DefaultVectorsFile
	}
	if mf == "" {
		mf = DefaultMetadataFile
	}
	return filepath.Join(s.Dir, vf), filepath.Join(s.Dir, mf)
}

func (s *FileStore) Load(_ context.Context) (*catalog.Snapshot, error) {
	vp, mp := s.paths()
	snap := &catalog.Snapshot{}
	if err := readJSON(vp, &snap.Vectors); err != nil {
		return nil, err
	}
	if err := readJSON(mp, &snap.Tracks); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save 写出快照，目录不存在时创建。
func (s *FileStore) Save(_ context.Context, snap *catalog.Snapshot) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	vp, mp := s.paths()
	if err := writeJSON(vp, snap.Vectors); err != nil {
		return err
	}
	return writeJSON(mp, snap.Tracks)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "snapshot file %s missing", path)
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeConfig, err, "decode %s", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
