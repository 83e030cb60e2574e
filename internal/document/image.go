package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	defaultImageTimeout   = 10 * time.Second
	defaultImageMaxBytes  = 10 << 20
	defaultImageMaxPixels = 40_000_000
)

var (
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrImageDimensions = errors.New("image exceeds pixel limit")
	ErrImageStatus     = errors.New("unexpected image response status")
	ErrBlockedAddress  = errors.New("image host resolves to a non-public address")
)

// sharedAddressSpace is carrier-grade NAT, not covered by netip.Addr.IsPrivate.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Image is a fetched picture ready to be embedded in an office package.
type Image struct {
	Data   []byte
	Ext    string
	Width  int
	Height int
}

// ContentType is the package content type for the image extension.
func (img *Image) ContentType() string {
	return "image/" + img.Ext
}

// ImageFetcher resolves an image URL into embeddable bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*Image, error)
}

// HTTPImageFetcher downloads images with a per-image deadline, a byte cap
// and a pixel cap checked before decoding.
type HTTPImageFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	maxPixels int64
}

// NewHTTPImageFetcher builds a fetcher. A nil client gets one that refuses to
// connect to loopback, private and link-local addresses, redirects included.
func NewHTTPImageFetcher(client *http.Client, timeout time.Duration, maxBytes, maxPixels int64) *HTTPImageFetcher {
	if client == nil {
		client = publicOnlyClient()
	}
	if timeout <= 0 {
		timeout = defaultImageTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultImageMaxBytes
	}
	return &HTTPImageFetcher{client: client, timeout: timeout, maxBytes: maxBytes, maxPixels: maxPixels}
}

func publicOnlyClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   rejectNonPublic,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialed instead of the image host.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

// rejectNonPublic runs after name resolution, so it sees the address actually
// being dialed.
func rejectNonPublic(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsUnspecified(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		sharedAddressSpace.Contains(addr):
		return false
	}
	return true
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrImageStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrImageTooLarge
	}
	return DecodeImage(data, f.maxPixels)
}

// DecodeImage inspects data and returns it in a format both word processors
// and presentation programs render. PNG, JPEG and GIF are kept as they are;
// BMP, TIFF and WebP are transcoded to PNG. Images larger than maxPixels are
// rejected from their header alone; maxPixels <= 0 means the default.
func DecodeImage(data []byte, maxPixels int64) (*Image, error) {
	if maxPixels <= 0 {
		maxPixels = defaultImageMaxPixels
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageDimensions, cfg.Width, cfg.Height)
	}

	switch format {
	case "png", "jpeg", "gif":
		return &Image{Data: data, Ext: format, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to transcode %s image: %w", format, err)
	}
	return &Image{Data: buf.Bytes(), Ext: "png", Width: cfg.Width, Height: cfg.Height}, nil
}

// heightFor scales the image to width while keeping its aspect ratio.
func (img *Image) heightFor(width int64) int64 {
	return width * int64(img.Height) / int64(img.Width)
}
