package document

import "time"

const (
	nsPresentation = ` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	ctPresentation = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	ctSlideMaster  = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	ctSlideLayout  = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	ctTheme        = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctPresProps    = "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"
	ctViewProps    = "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"
	ctTableStyles  = "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"

	relTheme       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relPresProps   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/presProps"
	relViewProps   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/viewProps"
	relTableStyles = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/tableStyles"
)

// blankDeck builds an empty 13.333in x 7.5in presentation with a title
// layout and a title-and-content layout.
func blankDeck(now time.Time) ([]byte, error) {
	p := newPackage()

	ct := &contentTypes{
		Defaults: []ctDefault{
			{Extension: "rels", ContentType: ctRelationships},
			{Extension: "xml", ContentType: ctXML},
		},
	}
	ct.addOverride("ppt/presentation.xml", ctPresentation)
	ct.addOverride("ppt/slideMasters/slideMaster1.xml", ctSlideMaster)
	ct.addOverride("ppt/slideLayouts/slideLayout1.xml", ctSlideLayout)
	ct.addOverride("ppt/slideLayouts/slideLayout2.xml", ctSlideLayout)
	ct.addOverride("ppt/theme/theme1.xml", ctTheme)
	ct.addOverride("ppt/presProps.xml", ctPresProps)
	ct.addOverride("ppt/viewProps.xml", ctViewProps)
	ct.addOverride("ppt/tableStyles.xml", ctTableStyles)
	ct.addOverride("docProps/core.xml", ctCoreProps)
	ct.addOverride("docProps/app.xml", ctExtendedProps)
	data, err := ct.marshal()
	if err != nil {
		return nil, err
	}
	p.put(contentTypesPart, data)

	root := &relationships{}
	root.add(relOfficeDocument, "ppt/presentation.xml")
	root.add(relCoreProps, "docProps/core.xml")
	root.add(relExtendedProps, "docProps/app.xml")
	if err := putRels(p, rootRelsPart, root); err != nil {
		return nil, err
	}

	presRels := &relationships{}
	presRels.add(relSlideMaster, "slideMasters/slideMaster1.xml")
	presRels.add(relTheme, "theme/theme1.xml")
	presRels.add(relPresProps, "presProps.xml")
	presRels.add(relViewProps, "viewProps.xml")
	presRels.add(relTableStyles, "tableStyles.xml")
	p.put("ppt/presentation.xml", []byte(blankPresentationXML))
	if err := putRels(p, relsPart("ppt/presentation.xml"), presRels); err != nil {
		return nil, err
	}

	masterRels := &relationships{}
	masterRels.add(relSlideLayout, "../slideLayouts/slideLayout1.xml")
	masterRels.add(relSlideLayout, "../slideLayouts/slideLayout2.xml")
	masterRels.add(relTheme, "../theme/theme1.xml")
	p.put("ppt/slideMasters/slideMaster1.xml", []byte(blankMasterXML))
	if err := putRels(p, relsPart("ppt/slideMasters/slideMaster1.xml"), masterRels); err != nil {
		return nil, err
	}

	for _, layout := range []struct{ part, xml string }{
		{"ppt/slideLayouts/slideLayout1.xml", blankTitleLayoutXML},
		{"ppt/slideLayouts/slideLayout2.xml", blankContentLayoutXML},
	} {
		rels := &relationships{}
		rels.add(relSlideMaster, "../slideMasters/slideMaster1.xml")
		p.put(layout.part, []byte(layout.xml))
		if err := putRels(p, relsPart(layout.part), rels); err != nil {
			return nil, err
		}
	}

	p.put("ppt/theme/theme1.xml", []byte(blankThemeXML))
	p.put("ppt/presProps.xml", []byte(xmlDecl+`<p:presentationPr`+nsPresentation+`/>`))
	p.put("ppt/viewProps.xml", []byte(xmlDecl+`<p:viewPr`+nsPresentation+`/>`))
	p.put("ppt/tableStyles.xml", []byte(xmlDecl+
		`<a:tblStyleLst xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" def="{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"/>`))
	p.put("docProps/core.xml", []byte(coreProperties("", now)))
	p.put("docProps/app.xml", []byte(appProperties))

	return p.bytes()
}

func putRels(p *opcPackage, part string, rels *relationships) error {
	data, err := rels.marshal()
	if err != nil {
		return err
	}
	p.put(part, data)
	return nil
}

const blankPresentationXML = xmlDecl +
	`<p:presentation` + nsPresentation + ` saveSubsetFonts="1">` +
	`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
	`<p:sldSz cx="12192000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/>` +
	`</p:presentation>`

const groupShapeProps = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

const emptyTextBody = `<p:txBody><a:bodyPr/><a:lstStyle/><a:p><a:endParaRPr lang="en-US"/></a:p></p:txBody>`

const blankMasterXML = xmlDecl +
	`<p:sldMaster` + nsPresentation + `><p:cSld>` +
	`<p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>` + groupShapeProps +
	`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title Placeholder 1"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>` +
	`<p:txBody><a:bodyPr vert="horz" lIns="91440" tIns="45720" rIns="91440" bIns="45720" rtlCol="0" anchor="ctr"><a:normAutofit/></a:bodyPr>` +
	`<a:lstStyle/><a:p><a:endParaRPr lang="en-US"/></a:p></p:txBody></p:sp>` +
	`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Text Placeholder 2"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="838200" y="1825625"/><a:ext cx="10515600" cy="4351338"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>` +
	`<p:txBody><a:bodyPr vert="horz" lIns="91440" tIns="45720" rIns="91440" bIns="45720" rtlCol="0"><a:normAutofit/></a:bodyPr>` +
	`<a:lstStyle/><a:p><a:endParaRPr lang="en-US"/></a:p></p:txBody></p:sp>` +
	`</p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3"` +
	` accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/><p:sldLayoutId id="2147483650" r:id="rId2"/></p:sldLayoutIdLst>` +
	`<p:txStyles><p:titleStyle><a:lvl1pPr algn="l" defTabSz="914400" rtl="0" eaLnBrk="1" latinLnBrk="0" hangingPunct="1">` +
	`<a:lnSpc><a:spcPct val="90000"/></a:lnSpc><a:spcBef><a:spcPct val="0"/></a:spcBef><a:buNone/>` +
	`<a:defRPr sz="4400" kern="1200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill>` +
	`<a:latin typeface="+mj-lt"/><a:ea typeface="+mj-ea"/><a:cs typeface="+mj-cs"/></a:defRPr></a:lvl1pPr></p:titleStyle>` +
	`<p:bodyStyle><a:lvl1pPr marL="228600" indent="-228600" algn="l" defTabSz="914400">` +
	`<a:lnSpc><a:spcPct val="90000"/></a:lnSpc><a:spcBef><a:spcPts val="1000"/></a:spcBef>` +
	`<a:buFont typeface="Arial"/><a:buChar char="&#8226;"/>` +
	`<a:defRPr sz="2800" kern="1200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill>` +
	`<a:latin typeface="+mn-lt"/><a:ea typeface="+mn-ea"/><a:cs typeface="+mn-cs"/></a:defRPr></a:lvl1pPr></p:bodyStyle>` +
	`<p:otherStyle><a:defPPr><a:defRPr lang="en-US"/></a:defPPr></p:otherStyle></p:txStyles>` +
	`</p:sldMaster>`

const blankTitleLayoutXML = xmlDecl +
	`<p:sldLayout` + nsPresentation + ` type="title" preserve="1"><p:cSld name="Title Slide"><p:spTree>` + groupShapeProps +
	`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph type="ctrTitle"/></p:nvPr></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="1524000" y="1122363"/><a:ext cx="9144000" cy="2387600"/></a:xfrm></p:spPr>` +
	emptyTextBody + `</p:sp>` +
	`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Subtitle 2"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph type="subTitle" idx="1"/></p:nvPr></p:nvSpPr>` +
	`<p:spPr><a:xfrm><a:off x="1524000" y="3602038"/><a:ext cx="9144000" cy="1655762"/></a:xfrm></p:spPr>` +
	emptyTextBody + `</p:sp>` +
	`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`

const blankContentLayoutXML = xmlDecl +
	`<p:sldLayout` + nsPresentation + ` type="obj" preserve="1"><p:cSld name="Title and Content"><p:spTree>` + groupShapeProps +
	`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph type="title"/></p:nvPr></p:nvSpPr><p:spPr/>` + emptyTextBody + `</p:sp>` +
	`<p:sp><p:nvSpPr><p:cNvPr id="3" name="Content Placeholder 2"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
	`<p:nvPr><p:ph idx="1"/></p:nvPr></p:nvSpPr><p:spPr/>` + emptyTextBody + `</p:sp>` +
	`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`

const blankThemeXML = xmlDecl +
	`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office Theme"><a:themeElements>` +
	`<a:clrScheme name="Office">` +
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink></a:clrScheme>` +
	`<a:fontScheme name="Office">` +
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont></a:fontScheme>` +
	`<a:fmtScheme name="Office"><a:fillStyleLst>` + themeFill + themeFill + themeFill + `</a:fillStyleLst>` +
	`<a:lnStyleLst>` + themeLine + themeLine + themeLine + `</a:lnStyleLst>` +
	`<a:effectStyleLst>` + themeEffect + themeEffect + themeEffect + `</a:effectStyleLst>` +
	`<a:bgFillStyleLst>` + themeFill + themeFill + themeFill + `</a:bgFillStyleLst></a:fmtScheme>` +
	`</a:themeElements></a:theme>`

const (
	themeFill   = `<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`
	themeLine   = `<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`
	themeEffect = `<a:effectStyle><a:effectLst/></a:effectStyle>`
)
