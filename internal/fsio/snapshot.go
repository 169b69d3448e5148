// Package fsio implements store.FileOps: the plain byte-copy moves of
// source-file contents to and from snapshot storage (spec.md §6, which
// explicitly excludes diffing — every checkpoint is a full copy). Each
// copy is teed through a BLAKE3 hasher and the digest logged at debug
// level, the way the teacher's fstree.Capture logs content hashes for
// its Merkle tree — here it is a diagnostic aid, not part of the wire
// format.
package fsio

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zeebo/blake3"
)

// Files is the default store.FileOps implementation, copying real files
// under a working directory.
type Files struct {
	log *slog.Logger
}

// New returns a Files that logs through logger (slog.Default() if nil).
func New(logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{log: logger}
}

// Snapshot copies srcPath's contents into dstPath, truncating dstPath if
// it exists, per spec.md §6's "copy source_path to working_dir/name in
// binary mode".
func (f *Files) Snapshot(srcPath, dstPath string) error {
	digest, err := copyFile(srcPath, dstPath)
	if err != nil {
		return err
	}
	f.log.Debug("snapshot written", "source", srcPath, "target", dstPath, "blake3", digest)
	return nil
}

// Restore copies srcSnapshotPath's contents over dstPath.
func (f *Files) Restore(srcSnapshotPath, dstPath string) error {
	digest, err := copyFile(srcSnapshotPath, dstPath)
	if err != nil {
		return err
	}
	f.log.Debug("restored", "from", srcSnapshotPath, "target", dstPath, "blake3", digest)
	return nil
}

func copyFile(srcPath, dstPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("checkpoint: open %s: %w", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("checkpoint: open %s: %w", dstPath, err)
	}
	defer dst.Close()

	h := blake3.New()
	w := io.MultiWriter(dst, h)
	if _, err := io.Copy(w, src); err != nil {
		return "", fmt.Errorf("checkpoint: copy %s to %s: %w", srcPath, dstPath, err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("checkpoint: sync %s: %w", dstPath, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
