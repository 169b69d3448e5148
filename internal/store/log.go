// Package store implements the checkpoint log model: the four interlocked
// indexes (M1..M4) and the command operations (Create, Back, SwapTo,
// Delete, List) that mediate every mutation to them, per spec.md §4.4.
package store

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/PieterBenjamin/Checkpoint/internal/cptree"
	"github.com/PieterBenjamin/Checkpoint/internal/fnvhash"
	"github.com/PieterBenjamin/Checkpoint/internal/hashmap"
)

// InitialBucketCount matches the source's INITIAL_BUCKET_COUNT used when
// allocating each of the four tables.
const InitialBucketCount = 10

// NumberAttempts mirrors the source's NUMBER_ATTEMPTS retry budget for
// allocation failures (macros.h). Go's allocator does not generally hand
// back a recoverable error for small allocations, so nothing in this
// module retries allocations; it is kept as a named constant for parity
// with the source and is not referenced by any code.
const NumberAttempts = 20

// FileOps is the external collaborator responsible for moving source-file
// bytes to and from snapshot storage (spec.md §6). Implementations live
// in internal/fsio; store only calls through this interface so tests can
// substitute an in-memory fake.
type FileOps interface {
	// Snapshot copies srcPath's contents into dstPath, truncating dstPath
	// if it exists.
	Snapshot(srcPath, dstPath string) error
	// Restore copies srcSnapshotPath's contents over dstPath.
	Restore(srcSnapshotPath, dstPath string) error
}

// Log is the checkpoint-log aggregate: the four maps plus the working
// directory snapshot files live under.
type Log struct {
	WorkDir string
	Files   FileOps

	M1 *hashmap.Map[string]       // FileKey(source path) -> source path
	M2 *hashmap.Map[string]       // FileKey(source path) -> current checkpoint name
	M3 *hashmap.Map[string]       // FileKey(checkpoint name) -> snapshot filename
	M4 *hashmap.Map[*cptree.Node] // FileKey(source path) -> history tree root

	log *slog.Logger
}

// New returns an empty log rooted at workDir, using files for snapshot
// I/O. If logger is nil, slog.Default() is used.
func New(workDir string, files FileOps, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		WorkDir: workDir,
		Files:   files,
		M1:      hashmap.New[string](InitialBucketCount),
		M2:      hashmap.New[string](InitialBucketCount),
		M3:      hashmap.New[string](InitialBucketCount),
		M4:      hashmap.New[*cptree.Node](InitialBucketCount),
		log:     logger,
	}
}

func (l *Log) snapshotPath(cptName string) string {
	return filepath.Join(l.WorkDir, cptName)
}

// Create records a new checkpoint named cptName for srcPath, per
// spec.md §4.4. Checkpoint-name uniqueness is checked against M3 before
// any tree mutation — the source checks this only after inserting the
// new node, which is the ordering bug §9 documents and this rewrite does
// not reproduce.
func (l *Log) Create(srcPath, cptName string) error {
	kh := fnvhash.HashString(srcPath)
	ch := fnvhash.HashString(cptName)

	if _, taken := l.M3.Lookup(ch); taken {
		return fmt.Errorf("%w: %q", ErrNameTaken, cptName)
	}

	root, tracked := l.M4.Lookup(kh)

	var parent *cptree.Node
	if !tracked {
		parent = nil
	} else {
		cur, found := l.M2.Lookup(kh)
		if !found {
			return &ConsistencyError{Path: srcPath, Message: "M1/M4 tracked but M2 missing current checkpoint"}
		}
		node, found := cptree.Find(root, cur)
		if !found {
			return &ConsistencyError{Path: srcPath, Message: fmt.Sprintf("current checkpoint %q not found in its own tree", cur)}
		}
		parent = node
	}

	if err := l.Files.Snapshot(srcPath, l.snapshotPath(cptName)); err != nil {
		return fmt.Errorf("checkpoint: snapshot %s -> %s: %w", srcPath, cptName, err)
	}

	newNode := cptree.NewNode(cptName, parent)
	if !tracked {
		l.M1.Insert(kh, srcPath)
		l.M4.Insert(kh, newNode)
	} else {
		parent.InsertChild(newNode)
	}
	l.M2.Insert(kh, cptName)
	l.M3.Insert(ch, cptName)

	l.log.Debug("created checkpoint", "source", srcPath, "checkpoint", cptName)
	return nil
}

// Back moves srcPath's current checkpoint to its parent and restores the
// source file from the parent's snapshot. Returns ErrAlreadyAtRoot (with
// no mutation) if the current checkpoint has no parent.
func (l *Log) Back(srcPath string) error {
	kh := fnvhash.HashString(srcPath)

	root, found := l.M4.Lookup(kh)
	if !found {
		return fmt.Errorf("%w: %q", ErrUnknownPath, srcPath)
	}
	cur, found := l.M2.Lookup(kh)
	if !found {
		return &ConsistencyError{Path: srcPath, Message: "M1/M4 tracked but M2 missing current checkpoint"}
	}
	node, found := cptree.Find(root, cur)
	if !found {
		return &ConsistencyError{Path: srcPath, Message: fmt.Sprintf("current checkpoint %q not found in its own tree", cur)}
	}

	if node.Parent == nil {
		l.log.Debug("already at root", "source", srcPath, "checkpoint", cur)
		return ErrAlreadyAtRoot
	}

	if err := l.Files.Restore(l.snapshotPath(node.Parent.Name), srcPath); err != nil {
		return fmt.Errorf("checkpoint: restore %s from %s: %w", srcPath, node.Parent.Name, err)
	}
	l.M2.Insert(kh, node.Parent.Name)
	l.log.Debug("moved back", "source", srcPath, "checkpoint", node.Parent.Name)
	return nil
}

// SwapTo jumps srcPath's current checkpoint directly to cptName,
// restoring the source file from that checkpoint's snapshot. Calling
// SwapTo(p, c) twice is idempotent: the second call still finds
// M2[FNV(p)] == c, still a "replaced" insert, and performs the same
// restore (round-trip law in spec.md §8).
func (l *Log) SwapTo(srcPath, cptName string) error {
	ch := fnvhash.HashString(cptName)
	if _, found := l.M3.Lookup(ch); !found {
		return fmt.Errorf("%w: %q", ErrUnknownCheckpoint, cptName)
	}

	kh := fnvhash.HashString(srcPath)
	if _, tracked := l.M1.Lookup(kh); !tracked {
		return fmt.Errorf("%w: %q", ErrUnknownPath, srcPath)
	}

	if err := l.Files.Restore(l.snapshotPath(cptName), srcPath); err != nil {
		return fmt.Errorf("checkpoint: restore %s from %s: %w", srcPath, cptName, err)
	}

	if _, replaced := l.M2.Insert(kh, cptName); !replaced {
		return &ConsistencyError{Path: srcPath, Message: "M2 insert on SwapTo reported a new key, expected replace"}
	}
	l.log.Debug("swapped to", "source", srcPath, "checkpoint", cptName)
	return nil
}

// Delete removes all bookkeeping for srcPath: its M1/M2/M4 entries, and
// every M3 entry named by a node anywhere in its history tree. Snapshot
// files on disk are left in place (§9's conservative, documented
// decision).
func (l *Log) Delete(srcPath string) error {
	kh := fnvhash.HashString(srcPath)

	if _, found := l.M1.Lookup(kh); !found {
		return fmt.Errorf("%w: %q", ErrUnknownPath, srcPath)
	}
	root, found := l.M4.Remove(kh)
	if !found {
		return &ConsistencyError{Path: srcPath, Message: "M1 tracked but M4 missing tree root"}
	}
	l.M1.Remove(kh)
	l.M2.Remove(kh)

	cptree.Walk(root, func(n *cptree.Node, depth int) bool {
		l.M3.Remove(fnvhash.HashString(n.Name))
		return true
	})
	root.Detach()

	l.log.Debug("deleted", "source", srcPath)
	return nil
}

// Entry describes one tracked source file for List.
type Entry struct {
	SourcePath string
	Current    string
	Root       *cptree.Node
}

// List returns every tracked source file with its current checkpoint and
// history tree, in M1 iteration order.
func (l *Log) List() []Entry {
	var entries []Entry
	l.M1.Iterate(func(kh uint64, srcPath string) bool {
		cur, _ := l.M2.Lookup(kh)
		root, _ := l.M4.Lookup(kh)
		entries = append(entries, Entry{SourcePath: srcPath, Current: cur, Root: root})
		return true
	})
	return entries
}

// CheckInvariants verifies the cross-index invariants from spec.md §3/§8.
// It is intended for tests and for an optional post-command self-check,
// not for the hot path of every command.
func (l *Log) CheckInvariants() error {
	k1, k2, k4 := l.M1.Keys(), l.M2.Keys(), l.M4.Keys()
	if len(k1) != len(k2) || len(k1) != len(k4) {
		return &ConsistencyError{Message: fmt.Sprintf("key count mismatch: M1=%d M2=%d M4=%d", len(k1), len(k2), len(k4))}
	}
	for _, k := range k1 {
		if _, found := l.M2.Lookup(k); !found {
			return &ConsistencyError{Message: fmt.Sprintf("key %d present in M1 but missing from M2", k)}
		}
		if _, found := l.M4.Lookup(k); !found {
			return &ConsistencyError{Message: fmt.Sprintf("key %d present in M1 but missing from M4", k)}
		}
	}

	names := map[string]bool{}
	var dupe string
	ok := true
	l.M4.Iterate(func(k uint64, root *cptree.Node) bool {
		cptree.Walk(root, func(n *cptree.Node, depth int) bool {
			if names[n.Name] {
				dupe = n.Name
				ok = false
				return false
			}
			names[n.Name] = true
			if _, found := l.M3.Lookup(fnvhash.HashString(n.Name)); !found {
				dupe = n.Name
				ok = false
				return false
			}
			return true
		})
		return ok
	})
	if !ok {
		return &ConsistencyError{Message: fmt.Sprintf("checkpoint name %q violates uniqueness or M3 linkage", dupe)}
	}

	return nil
}
