package archive

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LocalBackend stores archived files on the local filesystem, grounded on
// the teacher's atomic temp-file-then-rename local store.
type LocalBackend struct {
	archiveRoot string
	baseURL     string
	log         zerolog.Logger
}

// NewLocalBackend creates a LocalFS archive backend.
func NewLocalBackend(archiveRoot, baseURL string, log zerolog.Logger) *LocalBackend {
	return &LocalBackend{archiveRoot: archiveRoot, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) UploadFile(ctx context.Context, src, dst, partition string) (string, bool) {
	full, err := b.safePath(filepath.Join(partition, dst))
	if err != nil {
		b.log.Error().Err(err).Str("dst", dst).Msg("local archive: unsafe destination path")
		return "", false
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.log.Error().Err(err).Str("dir", dir).Msg("local archive: mkdir failed")
		return "", false
	}

	data, err := os.ReadFile(src)
	if err != nil {
		b.log.Error().Err(err).Str("src", src).Msg("local archive: read source failed")
		return "", false
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.tmp")
	if err != nil {
		b.log.Error().Err(err).Msg("local archive: create temp failed")
		return "", false
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		b.log.Error().Err(err).Msg("local archive: write failed")
		return "", false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", false
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		b.log.Error().Err(err).Msg("local archive: rename failed")
		return "", false
	}

	return b.baseURL + "/" + path.Join(partition, url.PathEscape(dst)), true
}

func (b *LocalBackend) CleanFiles(ctx context.Context, root string, days int) (int, bool) {
	base := filepath.Join(b.archiveRoot, root)
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	type fileEntry struct {
		path    string
		modTime time.Time
	}
	var files []fileEntry
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, fileEntry{path: p, modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		b.log.Error().Err(err).Str("root", base).Msg("local archive: walk failed")
		return 0, false
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	var removed int
	for _, f := range files {
		if f.modTime.Before(cutoff) {
			if err := os.Remove(f.path); err == nil {
				removed++
			}
		}
	}
	removeEmptyDirs(base)
	return removed, true
}

// safePath resolves a relative key to an absolute path under archiveRoot,
// rejecting path traversal, grounded on the teacher's local store safePath.
func (b *LocalBackend) safePath(key string) (string, error) {
	full := filepath.Join(b.archiveRoot, filepath.FromSlash(key))
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	base, err := filepath.Abs(b.archiveRoot)
	if err != nil {
		return "", fmt.Errorf("invalid base: %w", err)
	}
	if !strings.HasPrefix(abs, base+string(filepath.Separator)) && abs != base {
		return "", fmt.Errorf("path traversal rejected: %q", key)
	}
	return abs, nil
}

// removeEmptyDirs recursively prunes now-empty subdirectories under root,
// grounded on the teacher's cache pruner's removeEmptyDirs.
func removeEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(root, e.Name())
		removeEmptyDirs(sub)
		remaining, _ := os.ReadDir(sub)
		if len(remaining) == 0 {
			os.Remove(sub)
		}
	}
}
