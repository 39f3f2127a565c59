package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/captcha-solver/internal/utils"
	"github.com/menta2k/captcha-solver/pkg/types"
)

// Preparation failures, matchable with errors.Is.
var (
	// ErrNotFound means the referenced local file does not exist.
	ErrNotFound = errors.New("image file not found")
	// ErrUnsupportedFormat means the declared MIME type is not an approved
	// image type.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrIO means reading or re-encoding the local image failed.
	ErrIO = errors.New("image read failed")
	// ErrFetch means downloading a remote image failed.
	ErrFetch = errors.New("image download failed")
)

// DefaultFetchTimeout bounds the HTTP GET for remote image references.
const DefaultFetchTimeout = 10 * time.Second

const userAgent = "captcha-solver/1.0"

// supportedMIME is the approved set of image types forwarded to a model.
var supportedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// SupportedMIME reports whether a MIME type belongs to the approved image
// set.
func SupportedMIME(m string) bool {
	return supportedMIME[m]
}

// Config holds preparation options.
type Config struct {
	// FetchTimeout bounds remote image downloads. Defaults to
	// DefaultFetchTimeout.
	FetchTimeout time.Duration
	// MaxDimension, when positive, downscales images whose longest side
	// exceeds it before submission. Zero sends the original bytes untouched.
	MaxDimension int
	// SendFormat is the re-encode format used when downscaling: "png"
	// (default) or "jpg".
	SendFormat string
	// JPEGQuality applies when SendFormat is "jpg". Defaults to 85.
	JPEGQuality int
	// HTTPClient overrides the transport used for remote fetches, mainly
	// for tests. FetchTimeout is ignored when set.
	HTTPClient *http.Client
}

// Preparer turns an image reference (local path or HTTP(S) URL) into an
// embedded image ready for a vision model.
type Preparer struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Preparer with default configuration.
func New() *Preparer {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Preparer with custom configuration.
func NewWithConfig(cfg Config) *Preparer {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.SendFormat == "" {
		cfg.SendFormat = "png"
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &Preparer{
		cfg:        cfg,
		httpClient: httpClient,
	}
}

// Prepare resolves an image reference from either a file path or URL.
func (p *Preparer) Prepare(ref string) (types.EmbeddedImage, error) {
	if utils.IsRemoteRef(ref) {
		return p.FetchRemote(ref)
	}
	return p.EncodeFile(ref)
}

// EncodeFile validates a local image file and embeds its bytes. The MIME
// type is guessed from the extension and checked against the approved set
// before the file is read.
func (p *Preparer) EncodeFile(path string) (types.EmbeddedImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.EmbeddedImage{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return types.EmbeddedImage{}, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	if info.IsDir() {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	mimeType := utils.GuessImageMIME(path)
	if !SupportedMIME(mimeType) {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, mimeType, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}

	return p.shrinkToFit(types.EmbeddedImage{MIME: mimeType, Data: data})
}

// FetchRemote downloads an image over HTTP(S) and embeds its bytes. The MIME
// type comes from the Content-Type response header, defaulting to image/png
// when the header is absent.
func (p *Preparer) FetchRemote(rawURL string) (types.EmbeddedImage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: invalid URL %q: %v", ErrFetch, rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return types.EmbeddedImage{}, fmt.Errorf("%w: unsupported URL scheme %q", ErrFetch, parsed.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.EmbeddedImage{}, fmt.Errorf("%w: HTTP %d %s", ErrFetch, resp.StatusCode, rawURL)
	}

	mimeType := "image/png"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if base, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = base
		} else {
			mimeType = ct
		}
	}
	if !SupportedMIME(mimeType) {
		return types.EmbeddedImage{}, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, mimeType, rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	return p.shrinkToFit(types.EmbeddedImage{MIME: mimeType, Data: data})
}

// shrinkToFit downscales oversized images before submission when a maximum
// dimension is configured. Images within bounds pass through byte-exact.
func (p *Preparer) shrinkToFit(img types.EmbeddedImage) (types.EmbeddedImage, error) {
	limit := p.cfg.MaxDimension
	if limit <= 0 {
		return img, nil
	}

	decoded, err := decodeImage(img.Data)
	if err != nil {
		return types.EmbeddedImage{}, fmt.Errorf("%w: decode: %v", ErrIO, err)
	}

	b := decoded.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img, nil
	}

	if w >= h {
		decoded = imaging.Resize(decoded, limit, 0, imaging.Lanczos)
	} else {
		decoded = imaging.Resize(decoded, 0, limit, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch strings.ToLower(p.cfg.SendFormat) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, decoded, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
			return types.EmbeddedImage{}, fmt.Errorf("%w: encode jpeg: %v", ErrIO, err)
		}
		return types.EmbeddedImage{MIME: "image/jpeg", Data: buf.Bytes()}, nil
	default: // png
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, decoded); err != nil {
			return types.EmbeddedImage{}, fmt.Errorf("%w: encode png: %v", ErrIO, err)
		}
		return types.EmbeddedImage{MIME: "image/png", Data: buf.Bytes()}, nil
	}
}

// decodeImage decodes image bytes with WebP support.
func decodeImage(data []byte) (image.Image, error) {
	// Try standard image.Decode first (PNG/JPEG/GIF plus registered WebP)
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}
