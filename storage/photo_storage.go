package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrSourceNotFound = errors.New("source not found")

// PhotoStorage places media files into the Year/Label folder hierarchy.
type PhotoStorage interface {
	EnsureFolder(base, year, label string) (string, error)
	Relocate(filename, sourceDir, destDir string) (string, error)
	Remove(path string) error
}

// LocalPhotoStorage moves files on the local filesystem. An existing
// destination is never overwritten: the incoming file gets a timestamp
// suffix instead.
type LocalPhotoStorage struct {
	Log *zap.Logger
	// Now stamps collision suffixes; defaults to time.Now.
	Now func() time.Time
}

func NewLocalPhotoStorage(log *zap.Logger) *LocalPhotoStorage {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalPhotoStorage{Log: log, Now: time.Now}
}

// EnsureFolder creates base/year/label and any missing parents.
func (s *LocalPhotoStorage) EnsureFolder(base, year, label string) (string, error) {
	dir := filepath.Join(base, year, label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", dir, err)
	}
	return dir, nil
}

// Relocate moves sourceDir/filename into destDir and returns the final path.
// A missing source leaves the filesystem untouched and yields
// ErrSourceNotFound.
func (s *LocalPhotoStorage) Relocate(filename, sourceDir, destDir string) (string, error) {
	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: directory %s", ErrSourceNotFound, sourceDir)
	}
	src := filepath.Join(sourceDir, filename)
	if _, err := os.Lstat(src); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, src)
	}

	dst := filepath.Join(destDir, filename)
	if samePath(src, dst) {
		return dst, nil
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", destDir, err)
	}

	dst, err := s.freePath(dst)
	if err != nil {
		return "", err
	}
	if err := move(src, dst); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	s.Log.Debug("relocated file",
		zap.String("from", src),
		zap.String("to", dst),
	)
	return dst, nil
}

// Remove deletes a single file.
func (s *LocalPhotoStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s.Log.Debug("removed file", zap.String("path", path))
	return nil
}

// freePath returns dst if nothing exists there, otherwise the first free
// name of the form stem_YYYYMMDD-HHMMSS[-N].ext.
func (s *LocalPhotoStorage) freePath(dst string) (string, error) {
	if !exists(dst) {
		return dst, nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(dst, ext) + "_" + now().Format("20060102-150405")

	candidate := stem + ext
	for n := 2; exists(candidate); n++ {
		if n > 10000 {
			return "", fmt.Errorf("no free name for %s", dst)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	s.Log.Info("destination exists, renaming incoming file",
		zap.String("existing", dst),
		zap.String("renamed", candidate),
	)
	return candidate, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// move renames src to dst, falling back to copy and delete when the
// rename crosses devices.
func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return err
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
