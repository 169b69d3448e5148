// Command checkpoint-wire-fixtures builds a small sample checkpoint log,
// serializes it with internal/wire, and emits a fixture manifest (JSON,
// hex-encoded log bytes, and a msgpack-encoded copy of the same manifest)
// for cross-language interop testing against the binary format — mirrors
// the teacher's cxdb-fstree-fixtures / cxdb-msgpack-fixtures tools.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/PieterBenjamin/Checkpoint/internal/store"
	"github.com/PieterBenjamin/Checkpoint/internal/wire"
)

// Fixture describes one serialized log for consumption by out-of-process
// decoders exercising the wire format.
type Fixture struct {
	Name       string            `json:"name" msgpack:"name"`
	LogHex     string            `json:"log_hex" msgpack:"log_hex"`
	Sources    map[string]string `json:"sources" msgpack:"sources"`
	Checkpoint map[string]string `json:"current_checkpoint" msgpack:"current_checkpoint"`
	Notes      string            `json:"notes,omitempty" msgpack:"notes,omitempty"`
}

type memFiles struct{ contents map[string]string }

func (f *memFiles) Snapshot(src, dst string) error {
	f.contents[dst] = f.contents[src]
	return nil
}
func (f *memFiles) Restore(src, dst string) error {
	f.contents[dst] = f.contents[src]
	return nil
}

func main() {
	outDir := flag.String("out", "testdata/fixtures", "output directory for fixtures")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	fixtures := []struct {
		name  string
		build func() *store.Log
	}{
		{"empty", buildEmpty},
		{"single-checkpoint", buildSingleCheckpoint},
		{"branching-history", buildBranchingHistory},
	}

	for _, fx := range fixtures {
		if err := writeFixture(*outDir, fx.name, fx.build()); err != nil {
			fmt.Fprintf(os.Stderr, "fixture %s: %v\n", fx.name, err)
			os.Exit(1)
		}
	}
}

func buildEmpty() *store.Log {
	return store.New("", &memFiles{contents: map[string]string{}}, nil)
}

func buildSingleCheckpoint() *store.Log {
	files := &memFiles{contents: map[string]string{"foo.txt": "hello"}}
	l := store.New("", files, nil)
	if err := l.Create("foo.txt", "v1"); err != nil {
		panic(err)
	}
	return l
}

func buildBranchingHistory() *store.Log {
	files := &memFiles{contents: map[string]string{"foo.txt": "hello"}}
	l := store.New("", files, nil)
	must(l.Create("foo.txt", "v1"))
	files.contents["foo.txt"] = "hello v2"
	must(l.Create("foo.txt", "v2"))
	must(l.Back("foo.txt"))
	files.contents["foo.txt"] = "hello v1b"
	must(l.Create("foo.txt", "v1b"))
	return l
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func writeFixture(outDir, name string, l *store.Log) error {
	tmp, err := os.CreateTemp("", "checkpoint-wire-fixture-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := wire.Write(tmpPath, l); err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}

	sources := map[string]string{}
	checkpoints := map[string]string{}
	for _, e := range l.List() {
		sources[e.SourcePath] = e.SourcePath
		checkpoints[e.SourcePath] = e.Current
	}

	fx := Fixture{
		Name:       name,
		LogHex:     hex.EncodeToString(raw),
		Sources:    sources,
		Checkpoint: checkpoints,
	}

	jsonPath := filepath.Join(outDir, name+".json")
	jsonBytes, err := json.MarshalIndent(fx, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, jsonBytes, 0o644); err != nil {
		return err
	}

	msgpackBytes, err := msgpack.Marshal(fx)
	if err != nil {
		return err
	}
	msgpackPath := filepath.Join(outDir, name+".msgpack")
	if err := os.WriteFile(msgpackPath, msgpackBytes, 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %s, %s\n", jsonPath, msgpackPath)
	return nil
}
