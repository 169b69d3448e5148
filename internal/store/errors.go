package store

import (
	"errors"
	"fmt"
)

// Sentinel errors mirroring the source's status codes (checkpoint.h,
// checkpoint_tree.h): callers match on these with errors.Is/errors.As
// rather than numeric constants.
var (
	// ErrNameTaken is returned by Create when the checkpoint name is
	// already present in M3. The log is left unmutated — name uniqueness
	// is checked before any tree mutation (see §9's documented ordering
	// bug, which this rewrite does not reproduce).
	ErrNameTaken = errors.New("checkpoint: name already taken")

	// ErrAlreadyAtRoot is returned by Back when the current checkpoint for
	// a path has no parent.
	ErrAlreadyAtRoot = errors.New("checkpoint: already at root")

	// ErrUnknownPath is returned when an operation references a source
	// path that has never been checkpointed.
	ErrUnknownPath = errors.New("checkpoint: unknown source path")

	// ErrUnknownCheckpoint is returned by SwapTo when the checkpoint name
	// is not present in M3.
	ErrUnknownCheckpoint = errors.New("checkpoint: unknown checkpoint name")

	// ErrMemory stands in for the source's MEM_ERR: a retried allocation
	// ultimately failed. Go's allocator rarely returns a recoverable
	// error, and no code path in this module currently returns it.
	ErrMemory = errors.New("checkpoint: memory error")
)

// ConsistencyError reports a violation of one of the cross-index
// invariants in spec.md §3 (e.g. a current-checkpoint name that cannot be
// found in its own tree). These are fatal: the engine does not attempt
// repair, and the command aborts without mutating the log.
type ConsistencyError struct {
	Path    string
	Message string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("checkpoint: consistency error for %q: %s", e.Path, e.Message)
}
