package blob

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// FSStore is a filesystem-backed Store rooted at a base directory, used for
// local runs and tests.
type FSStore struct {
	root string
}

// NewFS returns a Store writing under root.
func NewFS(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(bucket, key))
	if err != nil {
		return nil, eris.Wrapf(err, "blob: read %s/%s", bucket, key)
	}
	return data, nil
}

func (s *FSStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	path := s.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "blob: mkdir for %s/%s", bucket, key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "blob: write %s/%s", bucket, key)
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, bucket, key string) error {
	if err := os.Remove(s.path(bucket, key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "blob: delete %s/%s", bucket, key)
	}
	return nil
}
