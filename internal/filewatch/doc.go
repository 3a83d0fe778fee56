// Package filewatch watches single files for changes on behalf of image
// resources.
//
// A Hub owns one fsnotify watcher shared by every Watch created from it.
// Each Watch has exactly one Binding: a directory, a filename pattern and an
// enabled flag. Directories are reference counted across watches, so many
// images in the same folder cost one kernel watch.
//
// Events are delivered to two handlers per Watch:
//   - modified: the bound file was written or its attributes changed
//   - renamed: a file appeared under the bound name, which is how editors
//     and image tools typically save (write a temp file, rename over)
//
// Removals and renames away from the bound name are not delivered; the
// consumer keeps showing what it last loaded.
//
// # Delivery Guarantees
//
// Configure performs disable, reassign and enable as one step. Every
// delivery re-checks the watch generation while holding the watch's delivery
// lock, and Configure, Disable and Stop take the same lock. Once any of them
// returns, no handler for the previous binding is running or will run.
// Handlers therefore must not call back into their own Watch.
package filewatch
