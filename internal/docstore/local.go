package docstore

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/carepoint/medassist/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local docstore dir is required")
	}
	// A fresh install has no corpus yet; create the directory so ingestion
	// is a no-op instead of an error.
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create docstore dir: %w", err)
	}
	return &localStore{dir: config.Dir}, nil
}

func (s *localStore) List(ctx context.Context) ([]string, error) {
	_ = ctx
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if strings.Contains(key, "..") {
		return nil, fmt.Errorf("document key %q: %w", key, appErr.ErrInvalid)
	}
	return os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
}
