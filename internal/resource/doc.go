// Package resource implements the reloadable image shown for a
// comment-image reference.
//
// A Resource resolves an image URL against the source file that contains
// the comment, decodes it eagerly, watches the backing file and swaps in a
// freshly decoded image whenever the file changes. The display scale is
// reapplied on every swap.
//
// # Ownership
//
// Display state belongs to a Dispatcher, the single execution context that
// runs every mutation in order. Configure and SetScale block until their
// task has run there. File-change notifications arrive on the watcher's
// goroutine and are posted to the Dispatcher without waiting. Readers load
// an immutable snapshot and never block.
//
// # Failures
//
// A failed Configure or reload leaves the previously displayed image, URL
// and scale in place; the cause is returned as a *LoadError and kept in
// LastError. The watch still follows the most recent request, so fixing the
// file on disk recovers without another Configure.
//
// Registry groups resources under host slot identifiers and shares a file
// watcher, a dispatch loop and a decode cache between them.
package resource
