package document

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"documate/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	defaultSlideWidth  = 12192000
	defaultSlideHeight = 6858000

	slideImageLeft  = 8.5 * emuPerInch
	slideImageTop   = 2 * emuPerInch
	slideImageWidth = 4 * emuPerInch

	bulletFontSize   = 1200
	bulletFontFamily = "Arial"
	bulletSpaceAfter = 600

	firstSlideID = 256

	// slides carry their layout as rId1 and the optional picture as rId2
	slideImageRel = "rId2"

	sectionListExt = "{521415D9-36F7-43E2-AB2F-B90AF26B5E84}"
)

var (
	slideIDListRe = regexp.MustCompile(`(?s)<p:sldIdLst\s*/>|<p:sldIdLst>.*?</p:sldIdLst>`)
	customShowsRe = regexp.MustCompile(`(?s)<p:custShowLst\s*/>|<p:custShowLst>.*?</p:custShowLst>`)
	sectionListRe = regexp.MustCompile(`(?s)<p:ext uri="` + regexp.QuoteMeta(sectionListExt) + `">.*?</p:ext>`)
	slideSizeRe   = regexp.MustCompile(`<p:sldSz\b[^>]*>`)
	notesSizeRe   = regexp.MustCompile(`<p:notesSz\b[^>]*>`)
	cxAttrRe      = regexp.MustCompile(`\bcx="(\d+)"`)
	cyAttrRe      = regexp.MustCompile(`\bcy="(\d+)"`)
	layoutIDRe    = regexp.MustCompile(`<p:sldLayoutId\b[^>]*\br:id="([^"]+)"`)
	placeholderRe = regexp.MustCompile(`<p:ph\b[^>]*>`)
	phTypeAttrRe  = regexp.MustCompile(`\btype="([^"]*)"`)
	phIndexAttrRe = regexp.MustCompile(`\bidx="([^"]*)"`)
)

type slideLayout struct {
	part  string
	title string // <p:ph> element of the title placeholder, empty if none
	body  string
}

// deckBuilder assembles a presentation in two phases. loadDeck reads a
// styling source and discards every slide it carries; the add methods then
// append generated slides and bytes serializes the result.
type deckBuilder struct {
	pkg      *opcPackage
	ct       *contentTypes
	presPart string
	pres     []byte
	presRels *relationships
	layouts  []slideLayout
	width    int64
	height   int64
	slideIDs []string
}

func loadDeck(data []byte) (*deckBuilder, error) {
	pkg, err := readPackage(data)
	if err != nil {
		return nil, err
	}
	d := &deckBuilder{pkg: pkg, width: defaultSlideWidth, height: defaultSlideHeight}

	raw, ok := pkg.get(contentTypesPart)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTemplate, contentTypesPart)
	}
	if d.ct, err = parseContentTypes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	d.presPart = "ppt/presentation.xml"
	if raw, ok := pkg.get(rootRelsPart); ok {
		if root, err := parseRelationships(raw); err == nil {
			if rel, ok := root.firstOfType(relOfficeDocument); ok {
				d.presPart = resolveTarget("", rel.Target)
			}
		}
	}
	if d.pres, ok = pkg.get(d.presPart); !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidTemplate, d.presPart)
	}
	raw, ok = pkg.get(relsPart(d.presPart))
	if !ok {
		return nil, fmt.Errorf("%w: missing presentation relationships", ErrInvalidTemplate)
	}
	if d.presRels, err = parseRelationships(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	d.discardSlides()
	d.readSlideSize()
	if err := d.readLayouts(); err != nil {
		return nil, err
	}
	return d, nil
}

// discardSlides removes every slide with its notes and drops media that
// nothing references afterwards.
func (d *deckBuilder) discardSlides() {
	var kept []relationship
	removed := 0
	for _, rel := range d.presRels.Items {
		if rel.Type != relSlide {
			kept = append(kept, rel)
			continue
		}
		slide := resolveTarget(d.presPart, rel.Target)
		if raw, ok := d.pkg.get(relsPart(slide)); ok {
			if rels, err := parseRelationships(raw); err == nil {
				for _, r := range rels.Items {
					if r.Type == relNotesSlide {
						notes := resolveTarget(slide, r.Target)
						d.removePart(notes)
						d.removePart(relsPart(notes))
					}
				}
			}
		}
		d.removePart(slide)
		d.removePart(relsPart(slide))
		removed++
	}
	d.presRels.Items = kept

	d.pres = slideIDListRe.ReplaceAll(d.pres, nil)
	d.pres = customShowsRe.ReplaceAll(d.pres, nil)
	d.pres = sectionListRe.ReplaceAll(d.pres, nil)

	if removed > 0 {
		log.Debug().Int("slides", removed).Msg("Discarded template slides")
	}
	d.collectMedia()
}

func (d *deckBuilder) collectMedia() {
	used := make(map[string]bool)
	for _, name := range d.pkg.names {
		if !strings.HasSuffix(name, ".rels") || name == relsPart(d.presPart) {
			continue
		}
		rels, err := parseRelationships(d.pkg.parts[name])
		if err != nil {
			continue
		}
		source := relsSource(name)
		for _, r := range rels.Items {
			if r.TargetMode != "External" {
				used[resolveTarget(source, r.Target)] = true
			}
		}
	}
	for _, name := range slices.Clone(d.pkg.names) {
		if strings.HasPrefix(name, "ppt/media/") && !used[name] {
			d.removePart(name)
		}
	}
}

func (d *deckBuilder) removePart(part string) {
	d.pkg.remove(part)
	d.ct.removeOverride(part)
}

func (d *deckBuilder) readSlideSize() {
	tag := slideSizeRe.Find(d.pres)
	if tag == nil {
		return
	}
	if m := cxAttrRe.FindSubmatch(tag); m != nil {
		if v, err := strconv.ParseInt(string(m[1]), 10, 64); err == nil {
			d.width = v
		}
	}
	if m := cyAttrRe.FindSubmatch(tag); m != nil {
		if v, err := strconv.ParseInt(string(m[1]), 10, 64); err == nil {
			d.height = v
		}
	}
}

// readLayouts lists the first master's layouts in master order.
func (d *deckBuilder) readLayouts() error {
	rel, ok := d.presRels.firstOfType(relSlideMaster)
	if !ok {
		return fmt.Errorf("%w: no slide master", ErrInvalidTemplate)
	}
	master := resolveTarget(d.presPart, rel.Target)
	masterXML, ok := d.pkg.get(master)
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrInvalidTemplate, master)
	}
	raw, ok := d.pkg.get(relsPart(master))
	if !ok {
		return fmt.Errorf("%w: missing slide master relationships", ErrInvalidTemplate)
	}
	masterRels, err := parseRelationships(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	for _, m := range layoutIDRe.FindAllSubmatch(masterXML, -1) {
		rel, ok := masterRels.byID(string(m[1]))
		if !ok {
			continue
		}
		part := resolveTarget(master, rel.Target)
		layoutXML, ok := d.pkg.get(part)
		if !ok {
			continue
		}
		d.layouts = append(d.layouts, parseLayout(part, layoutXML))
	}
	if len(d.layouts) < 2 {
		return fmt.Errorf("%w: found %d", ErrNoLayouts, len(d.layouts))
	}
	return nil
}

func parseLayout(part string, data []byte) slideLayout {
	l := slideLayout{part: part}
	var fallback string
	for _, tag := range placeholderRe.FindAll(data, -1) {
		var typ, idx string
		if m := phTypeAttrRe.FindSubmatch(tag); m != nil {
			typ = string(m[1])
		}
		if m := phIndexAttrRe.FindSubmatch(tag); m != nil {
			idx = string(m[1])
		}
		switch {
		case typ == "title" || typ == "ctrTitle":
			if l.title == "" {
				l.title = placeholderElement(typ, "")
			}
		case idx == "1":
			if l.body == "" {
				l.body = placeholderElement(typ, idx)
			}
		case idx != "" && (typ == "" || typ == "body" || typ == "obj"):
			if fallback == "" {
				fallback = placeholderElement(typ, idx)
			}
		}
	}
	if l.body == "" {
		l.body = fallback
	}
	return l
}

func placeholderElement(typ, idx string) string {
	var b strings.Builder
	b.WriteString("<p:ph")
	if typ != "" {
		fmt.Fprintf(&b, ` type="%s"`, typ)
	}
	if idx != "" {
		fmt.Fprintf(&b, ` idx="%s"`, idx)
	}
	b.WriteString("/>")
	return b.String()
}

func (d *deckBuilder) addTitleSlide(title string) error {
	l := d.layouts[0]
	var shapes string
	if l.title != "" {
		shapes = placeholderShape(2, "Title 1", l.title, titleParagraph(title))
	}
	return d.addSlide(l, shapes, nil)
}

func (d *deckBuilder) addContentSlide(title string, bullets []string, img *Image) error {
	l := d.layouts[1]
	var shapes strings.Builder
	id := 2
	if l.title != "" {
		shapes.WriteString(placeholderShape(id, "Title 1", l.title, titleParagraph(title)))
		id++
	}
	if len(bullets) > 0 && l.body != "" {
		var paras strings.Builder
		for _, line := range bullets {
			paras.WriteString(bulletParagraph(line))
		}
		shapes.WriteString(placeholderShape(id, "Content Placeholder 2", l.body, paras.String()))
		id++
	}
	if img != nil {
		x, y, cx, cy := d.imageFrame(img)
		fmt.Fprintf(&shapes, slidePictureXML, id, id, slideImageRel, x, y, cx, cy)
	}
	return d.addSlide(l, shapes.String(), img)
}

// imageFrame places the picture at the fixed offset, pulled back inside the
// slide when a narrower template would cut it off.
func (d *deckBuilder) imageFrame(img *Image) (x, y, cx, cy int64) {
	x, y, cx = slideImageLeft, slideImageTop, slideImageWidth
	cy = img.heightFor(cx)
	if x+cx > d.width {
		x = max(d.width-cx-emuPerInch/2, 0)
	}
	if y+cy > d.height {
		y = max(d.height-cy, 0)
	}
	return x, y, cx, cy
}

func (d *deckBuilder) addSlide(layout slideLayout, shapes string, img *Image) error {
	part := d.pkg.freeName("ppt/slides/slide%d.xml")

	rels := &relationships{}
	rels.add(relSlideLayout, relativeTarget(part, layout.part))
	if img != nil {
		media := d.pkg.freeName("ppt/media/image%d." + img.Ext)
		d.pkg.put(media, img.Data)
		d.ct.addDefault(img.Ext, img.ContentType())
		rels.add(relImage, relativeTarget(part, media))
	}

	d.pkg.put(part, []byte(slideHeader+shapes+slideFooter))
	if err := putRels(d.pkg, relsPart(part), rels); err != nil {
		return fmt.Errorf("failed to write slide relationships: %w", err)
	}
	d.ct.addOverride(part, ctSlide)
	d.slideIDs = append(d.slideIDs, d.presRels.add(relSlide, relativeTarget(d.presPart, part)))
	return nil
}

func (d *deckBuilder) bytes() ([]byte, error) {
	pres := d.pres
	if len(d.slideIDs) > 0 {
		var lst strings.Builder
		lst.WriteString("<p:sldIdLst>")
		for i, rid := range d.slideIDs {
			fmt.Fprintf(&lst, `<p:sldId id="%d" r:id="%s"/>`, firstSlideID+i, rid)
		}
		lst.WriteString("</p:sldIdLst>")

		loc := slideSizeRe.FindIndex(pres)
		if loc == nil {
			loc = notesSizeRe.FindIndex(pres)
		}
		if loc == nil {
			return nil, fmt.Errorf("%w: presentation has no size element", ErrInvalidTemplate)
		}
		pres = slices.Concat(pres[:loc[0]], []byte(lst.String()), pres[loc[0]:])
	}
	d.pkg.put(d.presPart, pres)

	if err := putRels(d.pkg, relsPart(d.presPart), d.presRels); err != nil {
		return nil, fmt.Errorf("failed to write presentation relationships: %w", err)
	}
	ct, err := d.ct.marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content types: %w", err)
	}
	d.pkg.put(contentTypesPart, ct)
	return d.pkg.bytes()
}

// AssembleSlideDeck renders a title slide and one content slide per section
// on top of the named template, or on a blank widescreen deck when no such
// template exists. Images that cannot be fetched are left out.
func (a *Assembler) AssembleSlideDeck(ctx context.Context, title string, sections []models.SectionInput, templateID string) ([]byte, error) {
	source, err := a.templates.Load(templateID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		if source, err = blankDeck(a.now()); err != nil {
			return nil, fmt.Errorf("failed to create blank deck: %w", err)
		}
	}

	deck, err := loadDeck(source)
	if err != nil {
		return nil, err
	}

	if err := deck.addTitleSlide(CleanText(title)); err != nil {
		return nil, err
	}

	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var img *Image
		if section.ImageURL != "" {
			if img, err = a.images.Fetch(ctx, section.ImageURL); err != nil {
				log.Warn().Err(err).Int("section", i).Str("url", section.ImageURL).Msg("Skipping slide image")
				img = nil
			}
		}

		if err := deck.addContentSlide(CleanText(section.Title), bulletLines(section.Content), img); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return deck.bytes()
}

// bulletLines splits content into cleaned, non-blank bullet texts.
func bulletLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if cleaned := CleanBullet(line); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return lines
}

// relsSource is the part a relationships part belongs to.
func relsSource(rels string) string {
	return path.Join(path.Dir(path.Dir(rels)), strings.TrimSuffix(path.Base(rels), ".rels"))
}

func placeholderShape(id int, name, ph, paragraphs string) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>`+
		`<p:nvPr>%s</p:nvPr></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>%s</p:txBody></p:sp>`,
		id, name, ph, paragraphs)
}

func titleParagraph(text string) string {
	if text == "" {
		return `<a:p><a:endParaRPr lang="en-US" dirty="0"/></a:p>`
	}
	return `<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>` + escapeXML(text) + `</a:t></a:r></a:p>`
}

func bulletParagraph(text string) string {
	return fmt.Sprintf(`<a:p><a:pPr><a:spcAft><a:spcPts val="%d"/></a:spcAft></a:pPr>`+
		`<a:r><a:rPr lang="en-US" sz="%d" dirty="0"><a:latin typeface="%s"/><a:cs typeface="%s"/></a:rPr>`+
		`<a:t>%s</a:t></a:r></a:p>`,
		bulletSpaceAfter, bulletFontSize, bulletFontFamily, bulletFontFamily, escapeXML(text))
}

const slideHeader = xmlDecl + `<p:sld` + nsPresentation + `><p:cSld><p:spTree>` + groupShapeProps

const slideFooter = `</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`

// id, picture index, rId, x, y, cx, cy
const slidePictureXML = `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/>` +
	`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>` +
	`<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
	`<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`
