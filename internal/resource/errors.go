package resource

import (
	"errors"
	"fmt"

	"github.com/ironsheep/comment-image-mcp/internal/imaging"
)

var (
	// ErrInvalidReference reports a missing source file path or image URL.
	ErrInvalidReference = errors.New("invalid image reference")

	// ErrUnsupportedScheme reports an absolute URI whose scheme cannot be
	// loaded from the local filesystem.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")

	// ErrClosed is returned by a Resource after Close.
	ErrClosed = errors.New("image resource closed")

	// ErrUnknownSlot is returned by Registry for slots it does not hold.
	ErrUnknownSlot = errors.New("unknown image slot")
)

// Kind classifies why a load failed. Every kind is recoverable.
type Kind int

const (
	// InvalidReference: a required input was empty. No state changed.
	InvalidReference Kind = iota + 1
	// NotFound: the resolved file did not exist at decode time.
	NotFound
	// DecodeFailure: the file could not be read or decoded as an image.
	DecodeFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidReference:
		return "invalid_reference"
	case NotFound:
		return "not_found"
	case DecodeFailure:
		return "decode_failure"
	default:
		return "unknown"
	}
}

// LoadError carries the failure kind and the URL being loaded.
type LoadError struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to e.Kind, so callers can test
// errors.Is(err, imaging.ErrNotFound) without knowing about LoadError.
func (e *LoadError) Is(target error) bool {
	switch e.Kind {
	case InvalidReference:
		return target == ErrInvalidReference
	case NotFound:
		return target == imaging.ErrNotFound
	case DecodeFailure:
		return target == imaging.ErrDecodeFailure
	}
	return false
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}

func invalidReference(url, reason string) *LoadError {
	return &LoadError{Kind: InvalidReference, URL: url, Err: errors.New(reason)}
}

// classify wraps a decode error in a LoadError. Anything that is not a
// missing file counts as a decode failure.
func classify(url string, err error) *LoadError {
	kind := DecodeFailure
	if errors.Is(err, imaging.ErrNotFound) {
		kind = NotFound
	}
	return &LoadError{Kind: kind, URL: url, Err: err}
}
