// Package fs implements a filesystem-backed blob Store. Keys map to
// relative file paths under the root; a sidecar file (key + ".meta") holds
// content type and user metadata.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"blockcore/internal/infra/blob/core"
)

// Store implements core.Store on the local filesystem. Writes go through a
// temp file and rename, so a Put replaces the previous content atomically.
type Store struct {
	root string
}

// New returns a filesystem-backed blob store rooted at path, creating it if
// needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Driver returns the blob driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key contains '..'")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key")
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid key traversal")
	}
	return clean, nil
}

func (s *Store) pathFor(key string) (dataPath, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, k)
	metaPath = dataPath + ".meta"
	return
}

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Put stores or replaces a blob.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	h := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(tmp, h), r)
	if copyErr != nil {
		_ = tmp.Close()
		return core.Info{}, copyErr
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return core.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Info{}, err
	}
	etag := hex.EncodeToString(h.Sum(nil))
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return core.Info{}, err
	}
	now := time.Now().UTC()
	mf := metaFile{ContentType: opts.ContentType, Metadata: core.CloneMetadata(opts.Metadata), ETag: etag, Size: size, UpdatedAt: now}
	raw, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
		return core.Info{}, err
	}
	return core.Info{Key: key, Size: size, ContentType: opts.ContentType, ETag: etag, Metadata: core.CloneMetadata(opts.Metadata), LastModified: now}, nil
}

// Get returns blob metadata and an open file handle to its content.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return core.Info{}, nil, err
	}
	mf, err := readMeta(metaPath)
	if err != nil {
		_ = file.Close()
		return core.Info{}, nil, err
	}
	return infoFromMeta(key, mf), file, nil
}

// Head returns blob metadata only.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	_, metaPath, err := s.pathFor(key)
	if err != nil {
		return core.Info{}, err
	}
	mf, err := readMeta(metaPath)
	if err != nil {
		return core.Info{}, err
	}
	return infoFromMeta(key, mf), nil
}

// Delete removes the blob and its sidecar, returning true if it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, statErr := os.Stat(dataPath); errors.Is(statErr, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// List returns all blobs whose key matches prefix, sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".meta") {
			return nil
		}
		mf, err := readMeta(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, ".meta"))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			infos = append(infos, infoFromMeta(key, mf))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func infoFromMeta(key string, mf metaFile) core.Info {
	return core.Info{Key: key, Size: mf.Size, ContentType: mf.ContentType, ETag: mf.ETag, Metadata: core.CloneMetadata(mf.Metadata), LastModified: mf.UpdatedAt}
}

func readMeta(path string) (metaFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return metaFile{}, err
	}
	var mf metaFile
	if err := json.Unmarshal(b, &mf); err != nil {
		return metaFile{}, err
	}
	return mf, nil
}
