package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errUnreachable = errors.New("unreachable")
	testNow        = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// stubFetcher serves images from memory and fails for every other url.
type stubFetcher map[string]*Image

func (f stubFetcher) Fetch(_ context.Context, url string) (*Image, error) {
	if img, ok := f[url]; ok {
		return img, nil
	}
	return nil, errUnreachable
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(t *testing.T, w, h int) *Image {
	t.Helper()
	img, err := DecodeImage(pngBytes(t, w, h), 0)
	require.NoError(t, err)
	return img
}

func newTestAssembler(images ImageFetcher, templates *TemplateStore) *Assembler {
	a := NewAssembler(images, templates)
	a.now = func() time.Time { return testNow }
	return a
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	parts := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		parts[f.Name] = b
	}
	return parts
}

var wordTextRe = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

func wordTexts(document string) []string {
	var out []string
	for _, m := range wordTextRe.FindAllStringSubmatch(document, -1) {
		out = append(out, m[1])
	}
	return out
}

// slideText concatenates the <a:t> runs of a slide.
func slideText(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if end := strings.Index(part, "</a:t>"); end >= 0 {
			text.WriteString(part[:end] + " ")
		}
	}
	return text.String()
}

var slideIDRe = regexp.MustCompile(`<p:sldId [^>]*r:id="([^"]+)"`)

type deckView struct {
	parts  map[string][]byte
	slides []string
}

// openDeck lists slide parts in presentation order.
func openDeck(t *testing.T, data []byte) *deckView {
	t.Helper()
	v := &deckView{parts: unzip(t, data)}

	pres, ok := v.parts["ppt/presentation.xml"]
	require.True(t, ok)
	rels, err := parseRelationships(v.parts["ppt/_rels/presentation.xml.rels"])
	require.NoError(t, err)

	for _, m := range slideIDRe.FindAllStringSubmatch(string(pres), -1) {
		rel, ok := rels.byID(m[1])
		require.True(t, ok, "dangling slide id %s", m[1])
		name := resolveTarget("ppt/presentation.xml", rel.Target)
		require.Contains(t, v.parts, name)
		v.slides = append(v.slides, name)
	}
	return v
}

func (v *deckView) text(i int) string {
	return slideText(string(v.parts[v.slides[i]]))
}

func (v *deckView) xml(i int) string {
	return string(v.parts[v.slides[i]])
}

func (v *deckView) media() []string {
	var out []string
	for name := range v.parts {
		if strings.HasPrefix(name, "ppt/media/") {
			out = append(out, name)
		}
	}
	return out
}
