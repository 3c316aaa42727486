package bundler

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o775
	filePerm = 0o644
)

// artifacts manages the output directory of a build: validation, skip
// detection, purge of stale builds and the final write.
type artifacts struct {
	fs     afero.Fs
	logger *slog.Logger
	gzip   bool
	zstd   bool
}

// checkDirectory makes sure dir exists and accepts new files.
func (a *artifacts) checkDirectory(dir string) error {
	exists, err := afero.DirExists(a.fs, dir)
	if err != nil {
		return newError("check directory", dir, ErrDirectoryNotFound, err)
	}
	if !exists {
		// Concurrent builds may race here; MkdirAll succeeds for all of them.
		if err := a.fs.MkdirAll(dir, dirPerm); err != nil {
			return newError("create directory", dir, ErrDirectoryNotFound, err)
		}
		a.logger.Debug("created build directory", "dir", dir)
	}

	probe, err := afero.TempFile(a.fs, dir, ".bundler-probe-*")
	if err != nil {
		return newError("check directory", dir, ErrDirectoryNotWritable, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := a.fs.Remove(name); err != nil {
		a.logger.Warn("cannot remove write probe", "file", name, "error", err)
	}
	return nil
}

// alreadyBuilt reports whether dir already holds an artifact called name.
func (a *artifacts) alreadyBuilt(dir, name string) bool {
	exists, err := afero.Exists(a.fs, filepath.Join(dir, name))
	return err == nil && exists
}

// purgeStale removes every file in dir whose name starts with identity and
// returns how many were removed. The first failure aborts the purge.
func (a *artifacts) purgeStale(dir, identity string) (int, error) {
	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return 0, newError("purge", dir, ErrCannotRemoveFile, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), identity) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := a.fs.Remove(path); err != nil {
			return removed, newError("purge", path, ErrCannotRemoveFile, err)
		}
		a.logger.Debug("removed stale artifact", "path", path)
		removed++
	}
	return removed, nil
}

// write stores data as dir/name, followed by any configured precompressed
// copies.
func (a *artifacts) write(dir, name string, data []byte) error {
	if err := a.writeFile(dir, name, data); err != nil {
		return err
	}
	if a.gzip {
		compressed, err := gzipBytes(data)
		if err != nil {
			return newError("write", filepath.Join(dir, name+".gz"), ErrCannotSaveFile, err)
		}
		if err := a.writeFile(dir, name+".gz", compressed); err != nil {
			return err
		}
	}
	if a.zstd {
		compressed, err := zstdBytes(data)
		if err != nil {
			return newError("write", filepath.Join(dir, name+".zst"), ErrCannotSaveFile, err)
		}
		if err := a.writeFile(dir, name+".zst", compressed); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes through a temporary file in the same directory and
// renames it into place, so readers never see a partial artifact.
func (a *artifacts) writeFile(dir, name string, data []byte) error {
	dest := filepath.Join(dir, name)

	tmp, err := afero.TempFile(a.fs, dir, ".tmp-*")
	if err != nil {
		return newError("write", dest, ErrCannotSaveFile, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpPath)
		return newError("write", dest, ErrCannotSaveFile, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpPath)
		return newError("write", dest, ErrCannotSaveFile, err)
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpPath)
		return newError("write", dest, ErrCannotSaveFile, err)
	}
	_ = a.fs.Chmod(tmpPath, filePerm)

	if err := a.fs.Rename(tmpPath, dest); err != nil {
		_ = a.fs.Remove(tmpPath)
		return newError("write", dest, ErrCannotSaveFile, err)
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func zstdBytes(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}
