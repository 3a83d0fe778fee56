// Package imaging decodes, scales and summarises the images shown beneath
// source-code comments.
//
// Decoding is eager: Decode reads the whole file, decodes it and copies the
// pixels into freshly allocated *image.NRGBA buffers before returning. The
// resulting Decoded value never refers back to the file, so the file may be
// overwritten the moment Decode returns without affecting what is displayed.
//
// # Immutability
//
// A Decoded value is never modified after construction. Callers replace it
// wholesale when a newer version of the file is decoded. This makes it safe to
// read a Decoded from a rendering goroutine while another goroutine decodes
// the next version.
//
// # Animated Formats
//
// Whether an image is animated is decided by file extension, compared
// case-insensitively against the decoder's animated set (".gif" by default).
// GIF files are decoded frame by frame and composed onto a full canvas so
// every Frame can be painted on its own. The package does not run an
// animation clock; consumers drive playback using Frame.Delay and LoopCount.
//
// # Scale
//
// EffectiveSize applies the display scale law: a positive scale multiplies
// the native dimensions, anything else leaves them unchanged.
//
// # Error Handling
//
// Decode reports exactly two failure classes, testable with errors.Is:
//   - ErrNotFound: the file does not exist
//   - ErrDecodeFailure: everything else, including unsupported formats,
//     read errors and decoder faults
package imaging
