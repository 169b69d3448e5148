// Command checkpoint is the CLI front end for the per-file checkpoint
// log: create/back/swapto/delete/list verbs, a hidden working directory
// of snapshot files, and the binary log described in internal/wire.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/PieterBenjamin/Checkpoint/internal/config"
	"github.com/PieterBenjamin/Checkpoint/internal/cptree"
	"github.com/PieterBenjamin/Checkpoint/internal/fsio"
	"github.com/PieterBenjamin/Checkpoint/internal/list"
	"github.com/PieterBenjamin/Checkpoint/internal/store"
	"github.com/PieterBenjamin/Checkpoint/internal/wire"
)

const usage = `usage:
  checkpoint create <source_path> <checkpoint_name>
  checkpoint back <source_path>
  checkpoint swapto <source_path> <checkpoint_name>
  checkpoint delete <source_path>
  checkpoint list
`

// workDirName is the hidden per-directory working directory holding the
// log and every snapshot file, named after the source's ".cpt_".
const workDirName = ".cpt_"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "checkpoint: configuration error: %v\n", err)
		return 1
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	if len(args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	verb := args[1]

	if err := checkArity(verb, len(args)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	workDir := filepath.Join(cfg.WorkDir, workDirName)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		logger.Error("setup failed", "error", err)
		fmt.Fprintf(os.Stderr, "checkpoint: cannot create working directory: %v\n", err)
		return 1
	}

	release, err := fsio.Lock(workDir, cfg.LockTimeout)
	if err != nil {
		logger.Error("lock failed", "error", err)
		fmt.Fprintf(os.Stderr, "checkpoint: %v\n", err)
		return 1
	}
	defer release()

	files := fsio.New(logger)
	logPath := filepath.Join(workDir, "CpLog")
	l, err := wire.Load(logPath, workDir, files, logger)
	if err != nil {
		logger.Error("log read failed", "error", err)
		fmt.Fprintf(os.Stderr, "checkpoint: %v\n", err)
		return 1
	}

	cmdErr := dispatch(l, logger, verb, args)

	var consistency *store.ConsistencyError
	if errors.As(cmdErr, &consistency) {
		logger.Error("consistency error, log not rewritten", "error", cmdErr)
		fmt.Fprintf(os.Stderr, "checkpoint: %v\n", cmdErr)
		return 1
	}

	if err := wire.Write(logPath, l); err != nil {
		logger.Error("log write failed", "error", err)
		fmt.Fprintf(os.Stderr, "checkpoint: failed to save log: %v\n", err)
		return 1
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "checkpoint: %v\n", cmdErr)
		return 1
	}
	return 0
}

func checkArity(verb string, argc int) error {
	var want int
	switch verb {
	case "create", "swapto":
		want = 4
	case "back", "delete":
		want = 3
	case "list":
		want = 2
	default:
		return fmt.Errorf("checkpoint: unknown verb %q", verb)
	}
	if argc != want {
		return fmt.Errorf("checkpoint: %q expects %d argument(s)", verb, want-2)
	}
	return nil
}

func dispatch(l *store.Log, logger *slog.Logger, verb string, args []string) error {
	switch verb {
	case "create":
		return l.Create(args[2], args[3])
	case "back":
		if err := l.Back(args[2]); err != nil {
			if errors.Is(err, store.ErrAlreadyAtRoot) {
				fmt.Println("already at root")
				return nil
			}
			return err
		}
		return nil
	case "swapto":
		return l.SwapTo(args[2], args[3])
	case "delete":
		return l.Delete(args[2])
	case "list":
		printList(l)
		return nil
	default:
		return fmt.Errorf("checkpoint: unknown verb %q", verb)
	}
}

// printList implements spec.md §4.4's list format: for each tracked
// file, the source path with its current checkpoint, then each tree node
// as "name: child1, child2, …" followed by recursive sub-listings.
func printList(l *store.Log) {
	entries := l.List()
	if len(entries) == 0 {
		fmt.Println("no saved checkpoints")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s: %s\n", e.SourcePath, e.Current)
		printNode(e.Root)
	}
}

func printNode(n *cptree.Node) {
	if n == nil {
		return
	}
	var children []string
	for c, ok := n.Children.CursorFrom(list.Head); ok; ok = c.Advance() {
		children = append(children, c.Value().Name)
	}
	if len(children) == 0 {
		fmt.Printf("  %s\n", n.Name)
	} else {
		fmt.Printf("  %s: %s\n", n.Name, joinNames(children))
	}
	for c, ok := n.Children.CursorFrom(list.Head); ok; ok = c.Advance() {
		printNode(c.Value())
	}
}

func joinNames(names []string) string {
	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}
