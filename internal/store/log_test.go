package store

import (
	"errors"
	"testing"

	"github.com/PieterBenjamin/Checkpoint/internal/fnvhash"
)

// memFiles is an in-memory FileOps fake: keys are paths, values are the
// "file contents" at that path. It lets these tests exercise Log's
// command logic without touching disk.
type memFiles struct {
	contents map[string]string
}

func newMemFiles() *memFiles {
	return &memFiles{contents: map[string]string{}}
}

func (f *memFiles) Snapshot(srcPath, dstPath string) error {
	v, ok := f.contents[srcPath]
	if !ok {
		return errors.New("memFiles: no such source " + srcPath)
	}
	f.contents[dstPath] = v
	return nil
}

func (f *memFiles) Restore(srcSnapshotPath, dstPath string) error {
	v, ok := f.contents[srcSnapshotPath]
	if !ok {
		return errors.New("memFiles: no such snapshot " + srcSnapshotPath)
	}
	f.contents[dstPath] = v
	return nil
}

func newTestLog() (*Log, *memFiles) {
	files := newMemFiles()
	l := New("/work", files, nil)
	return l, files
}

func TestCreateFirstCheckpointEstablishesRoot(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"

	if err := l.Create("/src/a.txt", "v1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}

	entries := l.List()
	if len(entries) != 1 {
		t.Fatalf("List() has %d entries, want 1", len(entries))
	}
	if entries[0].Current != "v1" || entries[0].Root.Name != "v1" {
		t.Fatalf("entry = %+v, want current/root = v1", entries[0])
	}
}

func TestCreateChainBuildsPath(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"

	if err := l.Create("/src/a.txt", "v1"); err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	files.contents["/src/a.txt"] = "v2"
	if err := l.Create("/src/a.txt", "v2"); err != nil {
		t.Fatalf("Create v2: %v", err)
	}
	files.contents["/src/a.txt"] = "v3"
	if err := l.Create("/src/a.txt", "v3"); err != nil {
		t.Fatalf("Create v3: %v", err)
	}

	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}

	entries := l.List()
	if entries[0].Current != "v3" {
		t.Fatalf("Current = %q, want v3", entries[0].Current)
	}
	if entries[0].Root.Name != "v1" {
		t.Fatalf("Root.Name = %q, want v1", entries[0].Root.Name)
	}
	if entries[0].Root.Children.Len() != 1 {
		t.Fatalf("root has %d children, want 1", entries[0].Root.Children.Len())
	}
}

func TestCreateDuplicateNameRejectedWithoutMutation(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"
	files.contents["/src/b.txt"] = "x1"

	if err := l.Create("/src/a.txt", "v1"); err != nil {
		t.Fatalf("Create v1: %v", err)
	}

	err := l.Create("/src/b.txt", "v1")
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Create with duplicate name err = %v, want ErrNameTaken", err)
	}

	// b.txt must not have been tracked at all — rejection happens before
	// any mutation.
	if _, found := l.M1.Lookup(hashPath("/src/b.txt")); found {
		t.Fatal("rejected Create left b.txt tracked in M1")
	}
}

func TestBackWalksParentChain(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"
	l.Create("/src/a.txt", "v1")
	files.contents["/src/a.txt"] = "v2"
	l.Create("/src/a.txt", "v2")

	if err := l.Back("/src/a.txt"); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if files.contents["/src/a.txt"] != "v1" {
		t.Fatalf("file contents = %q, want v1", files.contents["/src/a.txt"])
	}

	entries := l.List()
	if entries[0].Current != "v1" {
		t.Fatalf("Current = %q, want v1", entries[0].Current)
	}

	if err := l.Back("/src/a.txt"); !errors.Is(err, ErrAlreadyAtRoot) {
		t.Fatalf("second Back err = %v, want ErrAlreadyAtRoot", err)
	}
}

func TestSwapToJumpsAcrossTree(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"
	l.Create("/src/a.txt", "v1")
	files.contents["/src/a.txt"] = "v2"
	l.Create("/src/a.txt", "v2")
	if err := l.Back("/src/a.txt"); err != nil {
		t.Fatalf("Back: %v", err)
	}
	files.contents["/src/a.txt"] = "v1-branch"
	if err := l.Create("/src/a.txt", "v1b"); err != nil {
		t.Fatalf("Create v1b: %v", err)
	}

	if err := l.SwapTo("/src/a.txt", "v2"); err != nil {
		t.Fatalf("SwapTo v2: %v", err)
	}
	if files.contents["/src/a.txt"] != "v2" {
		t.Fatalf("file contents = %q, want v2", files.contents["/src/a.txt"])
	}
	entries := l.List()
	if entries[0].Current != "v2" {
		t.Fatalf("Current = %q, want v2", entries[0].Current)
	}
}

func TestSwapToUnknownCheckpointFails(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"
	l.Create("/src/a.txt", "v1")

	if err := l.SwapTo("/src/a.txt", "ghost"); !errors.Is(err, ErrUnknownCheckpoint) {
		t.Fatalf("SwapTo err = %v, want ErrUnknownCheckpoint", err)
	}
}

func TestDeleteRemovesAllBookkeeping(t *testing.T) {
	l, files := newTestLog()
	files.contents["/src/a.txt"] = "v1"
	l.Create("/src/a.txt", "v1")
	files.contents["/src/a.txt"] = "v2"
	l.Create("/src/a.txt", "v2")

	if err := l.Delete("/src/a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants after Delete: %v", err)
	}
	if len(l.List()) != 0 {
		t.Fatalf("List() after Delete has %d entries, want 0", len(l.List()))
	}
	if _, found := l.M3.Lookup(hashPath("v1")); found {
		t.Fatal("M3 still has v1 after Delete")
	}
	if _, found := l.M3.Lookup(hashPath("v2")); found {
		t.Fatal("M3 still has v2 after Delete")
	}
}

func TestDeleteUnknownPathFails(t *testing.T) {
	l, _ := newTestLog()
	if err := l.Delete("/src/nope.txt"); !errors.Is(err, ErrUnknownPath) {
		t.Fatalf("Delete err = %v, want ErrUnknownPath", err)
	}
}

func TestListIsEmptyForFreshLog(t *testing.T) {
	l, _ := newTestLog()
	if entries := l.List(); len(entries) != 0 {
		t.Fatalf("List() on fresh log = %v, want empty", entries)
	}
}

func hashPath(s string) uint64 {
	return fnvhash.HashString(s)
}
