// Package vault implements the directory-state machine at the heart of
// vaultd: a hierarchical file store in which an item's physical location is
// its lifecycle stage.
//
// Every item is a self-describing markdown file with YAML frontmatter
// carrying its metadata (id, kind, hash, priority, timestamps, attempt
// history). Moving the file between stage directories is the state
// transition; there is no separate index to keep consistent, and the whole
// store can be reconstructed by listing directories.
//
// The store gives queue-like guarantees using only rename operations:
//
//   - WriteNew uses O_EXCL semantics so duplicate ids surface as ErrConflict.
//   - Claim renames a record from the shared Needs_Action stage into a
//     worker-private In_Progress subdirectory. Rename is atomic on a single
//     filesystem, so exactly one mover succeeds; all others observe the
//     source as missing and receive ErrAlreadyClaimed.
//   - SweepStaleClaims is the sole re-delivery mechanism: records parked
//     under a dead worker past the liveness timeout are moved back to
//     Needs_Action for re-claim, which is why downstream processing must be
//     idempotent.
//
// Cross-volume moves are never atomic; a Store must be rooted on a single
// filesystem.
package vault
