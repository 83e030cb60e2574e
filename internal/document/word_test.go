package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"documate/internal/models"

	"github.com/nguyenthenguyen/docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDocxContent(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.docx")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := docx.ReadDocxFile(path)
	require.NoError(t, err)
	defer r.Close()
	return r.Editable().GetContent()
}

func TestAssembleWordDocument_structure(t *testing.T) {
	a := newTestAssembler(stubFetcher{}, nil)
	sections := []models.SectionInput{
		{Title: "## Introduction", Content: "**Bold** opening line.\nSecond line."},
		{Title: "Market **Size**", Content: ""},
		{Title: "Summary", Content: "## Wrap up"},
	}

	data, err := a.AssembleWordDocument(context.Background(), "**Annual** Report", sections)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	content := readDocxContent(t, data)
	assert.Equal(t, 1, strings.Count(content, `<w:pStyle w:val="Title"/>`))
	assert.Equal(t, len(sections), strings.Count(content, `<w:pStyle w:val="Heading1"/>`))

	texts := wordTexts(content)
	for _, text := range texts {
		assert.NotContains(t, text, "**")
		assert.NotContains(t, text, "##")
	}
	assert.Equal(t, []string{
		"Annual Report",
		"Introduction", "Bold opening line.", "Second line.",
		"Market Size",
		"Summary", "Wrap up",
	}, texts)
	assert.Contains(t, content, `Bold opening line.</w:t><w:br/><w:t xml:space="preserve">Second line.`)

	// one spacer paragraph per section
	assert.Equal(t, len(sections), strings.Count(content, "<w:p></w:p>"))
}

func TestAssembleWordDocument_package(t *testing.T) {
	a := newTestAssembler(stubFetcher{}, nil)

	data, err := a.AssembleWordDocument(context.Background(), "R&D <plan>", []models.SectionInput{{Title: "One", Content: "x"}})
	require.NoError(t, err)

	parts := unzip(t, data)
	for _, name := range []string{
		contentTypesPart, rootRelsPart, "word/document.xml", "word/styles.xml",
		"word/_rels/document.xml.rels", "docProps/core.xml", "docProps/app.xml",
	} {
		assert.Contains(t, parts, name)
	}
	assert.Contains(t, string(parts["word/document.xml"]), "R&amp;D &lt;plan&gt;")
	assert.Contains(t, string(parts["docProps/core.xml"]), "<dc:title>R&amp;D &lt;plan&gt;</dc:title>")
	assert.Contains(t, string(parts["docProps/core.xml"]), "2024-05-01T12:00:00Z")

	ct, err := parseContentTypes(parts[contentTypesPart])
	require.NoError(t, err)
	assert.Contains(t, ct.Overrides, ctOverride{PartName: "/word/document.xml", ContentType: ctWordDocument})
}

func TestAssembleWordDocument_embedsImage(t *testing.T) {
	a := newTestAssembler(stubFetcher{"https://img.test/chart.png": testImage(t, 200, 100)}, nil)
	sections := []models.SectionInput{
		{Title: "Chart", Content: "See below.", ImageURL: "https://img.test/chart.png"},
	}

	data, err := a.AssembleWordDocument(context.Background(), "Doc", sections)
	require.NoError(t, err)

	parts := unzip(t, data)
	assert.Contains(t, parts, "word/media/image1.png")

	rels, err := parseRelationships(parts["word/_rels/document.xml.rels"])
	require.NoError(t, err)
	rel, ok := rels.firstOfType(relImage)
	require.True(t, ok)
	assert.Equal(t, "media/image1.png", rel.Target)

	doc := string(parts["word/document.xml"])
	assert.Contains(t, doc, `<wp:extent cx="4572000" cy="2286000"/>`)
	assert.Contains(t, doc, `r:embed="`+rel.ID+`"`)
	assert.NotContains(t, doc, imageUnavailableText)

	// content comes before the picture
	assert.Less(t, strings.Index(doc, "See below."), strings.Index(doc, "<w:drawing>"))

	ct, err := parseContentTypes(parts[contentTypesPart])
	require.NoError(t, err)
	assert.Contains(t, ct.Defaults, ctDefault{Extension: "png", ContentType: "image/png"})
}

func TestAssembleWordDocument_unreachableImage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/gone.png"
	srv.Close()

	a := newTestAssembler(NewHTTPImageFetcher(nil, 0, 0, 0), nil)
	sections := []models.SectionInput{
		{Title: "First", Content: "a", ImageURL: url},
		{Title: "Second", Content: "b"},
	}

	data, err := a.AssembleWordDocument(context.Background(), "Doc", sections)
	require.NoError(t, err)

	content := readDocxContent(t, data)
	assert.Equal(t, 1, strings.Count(content, imageUnavailableText))
	assert.Equal(t, 2, strings.Count(content, `<w:pStyle w:val="Heading1"/>`))
	for name := range unzip(t, data) {
		assert.False(t, strings.HasPrefix(name, "word/media/"), name)
	}
}

func TestAssembleWordDocument_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAssembler(stubFetcher{}, nil)
	_, err := a.AssembleWordDocument(ctx, "Doc", []models.SectionInput{{Title: "A"}})
	assert.ErrorIs(t, err, context.Canceled)
}
