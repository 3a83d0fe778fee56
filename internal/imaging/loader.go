package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

var (
	// ErrNotFound reports that the resolved image file does not exist.
	ErrNotFound = errors.New("image not found")

	// ErrDecodeFailure reports that the file exists but could not be turned
	// into an image. Unsupported formats and I/O faults are folded into it.
	ErrDecodeFailure = errors.New("image decode failed")

	// ErrTooLarge reports an image whose declared dimensions exceed the
	// decoder's pixel limit. It is always wrapped with ErrDecodeFailure.
	ErrTooLarge = errors.New("image too large")
)

const (
	// DefaultMaxPixels bounds the canvas of a single decoded image.
	DefaultMaxPixels = 64 << 20

	// DefaultMaxAnimationPixels bounds the sum of all composed frames of an
	// animated image.
	DefaultMaxAnimationPixels = 256 << 20
)

// DefaultAnimatedExtensions lists the extensions treated as animation-capable
// when no explicit set is configured.
var DefaultAnimatedExtensions = []string{".gif"}

// Frame is one fully composed frame of an animated image.
type Frame struct {
	// Image is the complete canvas for this frame, not just the delta.
	Image *image.NRGBA

	// Delay is how long the frame stays on screen before the next one.
	Delay time.Duration
}

// Decoded is an immutable, fully materialised decoded image.
//
// For animated images Image is the first composed frame and Frames holds the
// whole sequence. Static images have no Frames.
type Decoded struct {
	Image        *image.NRGBA
	Frames       []Frame
	LoopCount    int
	NativeWidth  int
	NativeHeight int
	IsAnimated   bool

	// Format is the registered decoder name detected from the file contents
	// ("png", "jpeg", "gif", "webp", ...).
	Format string

	// ContentHash is the xxhash of the raw file bytes.
	ContentHash uint64

	// FileSizeBytes is the size of the file that was decoded.
	FileSizeBytes int64
}

// FrameCount returns the number of frames, which is 1 for static images.
func (d *Decoded) FrameCount() int {
	if d == nil {
		return 0
	}
	if len(d.Frames) == 0 {
		return 1
	}
	return len(d.Frames)
}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// AnimatedExtensions overrides DefaultAnimatedExtensions. Entries may be
	// given with or without the leading dot and in any case.
	AnimatedExtensions []string

	// Cache, when non-nil, lets identical file contents share one Decoded.
	Cache *Cache

	// MaxPixels rejects images whose declared width*height is larger,
	// before any pixel memory is allocated. Zero means DefaultMaxPixels.
	MaxPixels int64

	// MaxAnimationPixels bounds canvas pixels times frame count for
	// animated images. Zero means DefaultMaxAnimationPixels.
	MaxAnimationPixels int64
}

// Decoder turns image files into Decoded values.
//
// A Decoder holds no per-file state and is safe for concurrent use.
type Decoder struct {
	animated     map[string]struct{}
	cache        *Cache
	maxPixels    int64
	maxAnimation int64
}

// NewDecoder creates a Decoder from options.
func NewDecoder(opts DecoderOptions) *Decoder {
	exts := opts.AnimatedExtensions
	if len(exts) == 0 {
		exts = DefaultAnimatedExtensions
	}
	animated := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		animated[ext] = struct{}{}
	}
	dec := &Decoder{
		animated:     animated,
		cache:        opts.Cache,
		maxPixels:    opts.MaxPixels,
		maxAnimation: opts.MaxAnimationPixels,
	}
	if dec.maxPixels <= 0 {
		dec.maxPixels = DefaultMaxPixels
	}
	if dec.maxAnimation <= 0 {
		dec.maxAnimation = DefaultMaxAnimationPixels
	}
	return dec
}

var defaultDecoder = NewDecoder(DecoderOptions{})

// Decode decodes path with the default animated set and no cache.
func Decode(path string) (*Decoded, error) {
	return defaultDecoder.Decode(path)
}

// IsAnimatedPath reports whether path's extension is in the animated set.
func (dec *Decoder) IsAnimatedPath(path string) bool {
	_, ok := dec.animated[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Decode reads and fully decodes the image at path.
//
// The returned error wraps ErrNotFound when the file is missing and
// ErrDecodeFailure for every other problem.
func (dec *Decoder) Decode(path string) (decoded *Decoded, err error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: failed to read image: %w", ErrDecodeFailure, err)
	}

	animated := dec.IsAnimatedPath(path)
	hash := xxhash.Sum64(data)
	if cached, ok := dec.cache.get(hash, animated); ok {
		return cached, nil
	}

	// Third-party decoders occasionally panic on hostile input.
	defer func() {
		if r := recover(); r != nil {
			decoded = nil
			err = fmt.Errorf("%w: decoder panic: %v", ErrDecodeFailure, r)
		}
	}()

	decoded, err = dec.decodeBytes(data, animated)
	if err != nil {
		return nil, err
	}
	decoded.ContentHash = hash
	decoded.FileSizeBytes = int64(len(data))

	dec.cache.put(hash, animated, decoded)
	return decoded, nil
}

func (dec *Decoder) decodeBytes(data []byte, animated bool) (*Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	// The header is checked before decoding: running out of memory cannot be
	// recovered.
	if err := dec.checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	if animated && format == "gif" {
		return dec.decodeAnimatedGIF(data)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()

	return &Decoded{
		Image:        nrgba,
		NativeWidth:  bounds.Dx(),
		NativeHeight: bounds.Dy(),
		IsAnimated:   animated,
		Format:       format,
	}, nil
}

// checkPixels rejects dimensions over the single-image limit.
func (dec *Decoder) checkPixels(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecodeFailure, width, height)
	}
	if int64(width)*int64(height) > dec.maxPixels {
		return fmt.Errorf("%w: %w: %dx%d exceeds %d pixels", ErrDecodeFailure, ErrTooLarge, width, height, dec.maxPixels)
	}
	return nil
}

// ImageInfo summarises a decoded image for the host.
type ImageInfo struct {
	// Width is the native width in pixels.
	Width int `json:"width" yaml:"width"`

	// Height is the native height in pixels.
	Height int `json:"height" yaml:"height"`

	// Format is the detected content format, e.g. "png" or "gif".
	Format string `json:"format" yaml:"format"`

	// Animated reports whether the consumer should drive frame playback.
	Animated bool `json:"animated" yaml:"animated"`

	// FrameCount is 1 for static images.
	FrameCount int `json:"frame_count" yaml:"frame_count"`

	// LoopCount follows image/gif: 0 loops forever, -1 plays once.
	LoopCount int `json:"loop_count,omitempty" yaml:"loop_count,omitempty"`

	// HasAlpha reports whether any pixel of the first frame is translucent.
	HasAlpha bool `json:"has_alpha" yaml:"has_alpha"`

	// FileSizeBytes is the size of the decoded file on disk.
	FileSizeBytes int64 `json:"file_size_bytes" yaml:"file_size_bytes"`

	// ContentHash is the hex xxhash of the file bytes.
	ContentHash string `json:"content_hash" yaml:"content_hash"`
}

// Info builds an ImageInfo for d.
func Info(d *Decoded) *ImageInfo {
	if d == nil {
		return nil
	}
	return &ImageInfo{
		Width:         d.NativeWidth,
		Height:        d.NativeHeight,
		Format:        d.Format,
		Animated:      d.IsAnimated,
		FrameCount:    d.FrameCount(),
		LoopCount:     d.LoopCount,
		HasAlpha:      d.Image != nil && !d.Image.Opaque(),
		FileSizeBytes: d.FileSizeBytes,
		ContentHash:   fmt.Sprintf("%016x", d.ContentHash),
	}
}
