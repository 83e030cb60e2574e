package document

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestHTTPImageFetcher_Fetch(t *testing.T) {
	data := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/slow.png":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case "/text":
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPImageFetcher(srv.Client(), time.Second, 1<<20, 0)

	t.Run("ok", func(t *testing.T) {
		img, err := f.Fetch(context.Background(), srv.URL+"/ok.png")
		require.NoError(t, err)
		assert.Equal(t, "png", img.Ext)
		assert.Equal(t, 40, img.Width)
		assert.Equal(t, 20, img.Height)
		assert.Equal(t, data, img.Data)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/missing.png")
		assert.ErrorIs(t, err, ErrImageStatus)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/text")
		assert.Error(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		small := NewHTTPImageFetcher(srv.Client(), time.Second, 16, 0)
		_, err := small.Fetch(context.Background(), srv.URL+"/ok.png")
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})

	t.Run("too many pixels", func(t *testing.T) {
		tiny := NewHTTPImageFetcher(srv.Client(), time.Second, 1<<20, 100)
		_, err := tiny.Fetch(context.Background(), srv.URL+"/ok.png")
		assert.ErrorIs(t, err, ErrImageDimensions)
	})

	t.Run("default client refuses loopback", func(t *testing.T) {
		guarded := NewHTTPImageFetcher(nil, time.Second, 0, 0)
		_, err := guarded.Fetch(context.Background(), srv.URL+"/ok.png")
		assert.ErrorIs(t, err, ErrBlockedAddress)
	})

	t.Run("timeout", func(t *testing.T) {
		quick := NewHTTPImageFetcher(srv.Client(), 50*time.Millisecond, 0, 0)
		start := time.Now()
		_, err := quick.Fetch(context.Background(), srv.URL+"/slow.png")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), "://nope")
		assert.Error(t, err)
	})
}

func TestDecodeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))

	t.Run("gif kept", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, gif.Encode(&buf, src, nil))
		img, err := DecodeImage(buf.Bytes(), 0)
		require.NoError(t, err)
		assert.Equal(t, "gif", img.Ext)
		assert.Equal(t, "image/gif", img.ContentType())
		assert.Equal(t, buf.Bytes(), img.Data)
	})

	t.Run("bmp transcoded", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, bmp.Encode(&buf, src))
		img, err := DecodeImage(buf.Bytes(), 0)
		require.NoError(t, err)
		assert.Equal(t, "png", img.Ext)
		assert.Equal(t, 8, img.Width)
		assert.Equal(t, 6, img.Height)

		decoded, err := png.Decode(bytes.NewReader(img.Data))
		require.NoError(t, err)
		assert.Equal(t, src.Bounds(), decoded.Bounds())
	})

	t.Run("pixel limit checked before decoding", func(t *testing.T) {
		// A blank 4000x4000 TIFF deflates to a few kilobytes.
		var buf bytes.Buffer
		big := image.NewGray(image.Rect(0, 0, 4000, 4000))
		require.NoError(t, tiff.Encode(&buf, big, &tiff.Options{Compression: tiff.Deflate}))
		require.Less(t, buf.Len(), 1<<20)

		_, err := DecodeImage(buf.Bytes(), 8_000_000)
		assert.ErrorIs(t, err, ErrImageDimensions)
	})

	t.Run("pixel limit applies to kept formats", func(t *testing.T) {
		_, err := DecodeImage(pngBytes(t, 40, 20), 799)
		assert.ErrorIs(t, err, ErrImageDimensions)

		img, err := DecodeImage(pngBytes(t, 40, 20), 800)
		require.NoError(t, err)
		assert.Equal(t, "png", img.Ext)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeImage([]byte("definitely not an image"), 0)
		assert.Error(t, err)
	})
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{"93.184.216.34", true},
		{"2606:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.public, isPublicAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestRejectNonPublic(t *testing.T) {
	assert.ErrorIs(t, rejectNonPublic("tcp4", "169.254.169.254:80", nil), ErrBlockedAddress)
	assert.NoError(t, rejectNonPublic("tcp4", "93.184.216.34:443", nil))
}

func TestImage_heightFor(t *testing.T) {
	img := &Image{Width: 200, Height: 100}
	assert.Equal(t, int64(2286000), img.heightFor(4572000))
}
