package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"documate/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	emuPerInch = 914400

	wordImageWidth = 5 * emuPerInch

	imageUnavailableText = "[Image could not be loaded]"

	wordDocumentPart = "word/document.xml"
	wordStylesPart   = "word/styles.xml"

	ctWordDocument = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctWordStyles   = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
)

// wordWriter accumulates body paragraphs and the media they reference.
type wordWriter struct {
	pkg     *opcPackage
	ct      *contentTypes
	docRels *relationships
	body    strings.Builder
	drawing int
}

func newWordWriter() *wordWriter {
	w := &wordWriter{
		pkg: newPackage(),
		ct: &contentTypes{
			Defaults: []ctDefault{
				{Extension: "rels", ContentType: ctRelationships},
				{Extension: "xml", ContentType: ctXML},
			},
		},
		docRels: &relationships{},
	}
	w.ct.addOverride(wordDocumentPart, ctWordDocument)
	w.ct.addOverride(wordStylesPart, ctWordStyles)
	w.ct.addOverride("docProps/core.xml", ctCoreProps)
	w.ct.addOverride("docProps/app.xml", ctExtendedProps)
	w.docRels.add(relStyles, "styles.xml")
	return w
}

func (w *wordWriter) paragraph(style, text string) {
	w.body.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(&w.body, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	if text != "" {
		w.body.WriteString("<w:r>")
		for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			if i > 0 {
				w.body.WriteString("<w:br/>")
			}
			fmt.Fprintf(&w.body, `<w:t xml:space="preserve">%s</w:t>`, escapeXML(line))
		}
		w.body.WriteString("</w:r>")
	}
	w.body.WriteString("</w:p>")
}

func (w *wordWriter) picture(img *Image) {
	w.drawing++
	media := w.pkg.freeName("word/media/image%d." + img.Ext)
	w.pkg.put(media, img.Data)
	w.ct.addDefault(img.Ext, img.ContentType())
	rid := w.docRels.add(relImage, relativeTarget(wordDocumentPart, media))

	cx := int64(wordImageWidth)
	cy := img.heightFor(cx)
	fmt.Fprintf(&w.body, wordPictureXML, cx, cy, w.drawing, w.drawing, w.drawing, img.Ext, rid, cx, cy)
}

func (w *wordWriter) finish(title string, now time.Time) ([]byte, error) {
	doc := wordDocumentHeader + w.body.String() + wordDocumentFooter
	w.pkg.put(wordDocumentPart, []byte(doc))
	w.pkg.put(wordStylesPart, []byte(wordStylesXML))

	rels, err := w.docRels.marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document relationships: %w", err)
	}
	w.pkg.put(relsPart(wordDocumentPart), rels)

	root := &relationships{}
	root.add(relOfficeDocument, wordDocumentPart)
	root.add(relCoreProps, "docProps/core.xml")
	root.add(relExtendedProps, "docProps/app.xml")
	rootRels, err := root.marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package relationships: %w", err)
	}
	w.pkg.put(rootRelsPart, rootRels)

	w.pkg.put("docProps/core.xml", []byte(coreProperties(title, now)))
	w.pkg.put("docProps/app.xml", []byte(appProperties))

	ct, err := w.ct.marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content types: %w", err)
	}
	w.pkg.put(contentTypesPart, ct)

	return w.pkg.bytes()
}

// AssembleWordDocument lays out the title, then per section a level-1
// heading, the content paragraph, the optional image and a spacer.
// An image that cannot be fetched is replaced by a notice paragraph.
func (a *Assembler) AssembleWordDocument(ctx context.Context, title string, sections []models.SectionInput) ([]byte, error) {
	w := newWordWriter()
	w.paragraph("Title", CleanText(title))

	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w.paragraph("Heading1", CleanText(section.Title))

		if content := CleanText(section.Content); content != "" {
			w.paragraph("", content)
		}

		if section.ImageURL != "" {
			img, err := a.images.Fetch(ctx, section.ImageURL)
			if err != nil {
				log.Warn().Err(err).Int("section", i).Str("url", section.ImageURL).Msg("Failed to add image")
				w.paragraph("", imageUnavailableText)
			} else {
				w.picture(img)
			}
		}

		w.paragraph("", "")
	}

	return w.finish(CleanText(title), a.now())
}

func coreProperties(title string, now time.Time) string {
	ts := now.UTC().Format(time.RFC3339)
	return fmt.Sprintf(corePropertiesXML, escapeXML(title), ts, ts)
}

const wordDocumentHeader = xmlDecl +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
	` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
	` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
	` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
	` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><w:body>`

const wordDocumentFooter = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/>` +
	`</w:sectPr></w:body></w:document>`

// cx, cy, docPr id, docPr name, picture name index, ext, rId, cx, cy
const wordPictureXML = `<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">` +
	`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>` +
	`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>` +
	`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="image.%s"/><pic:cNvPicPr/></pic:nvPicPr>` +
	`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>` +
	`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>` +
	`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`

const wordStylesXML = xmlDecl +
	`<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="Calibri" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/><w:lang w:val="en-US"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:spacing w:after="0" w:line="240" w:lineRule="auto"/><w:contextualSpacing/></w:pPr>` +
	`<w:rPr><w:spacing w:val="-10"/><w:kern w:val="28"/><w:sz w:val="56"/><w:szCs w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:keepLines/><w:spacing w:before="240" w:after="0"/><w:outlineLvl w:val="0"/></w:pPr>` +
	`<w:rPr><w:b/><w:color w:val="2F5496"/><w:sz w:val="32"/><w:szCs w:val="32"/></w:rPr></w:style>` +
	`</w:styles>`

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const corePropertiesXML = xmlDecl +
	`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
	` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
	` xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
	`<dc:title>%s</dc:title><dc:creator>DocuMate</dc:creator>` +
	`<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>` +
	`<dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified></cp:coreProperties>`

const appProperties = xmlDecl +
	`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
	`<Application>DocuMate</Application></Properties>`
