package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Relationship types used by fixtures.
const (
	RelTypeImage      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelTypeNotesSlide = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide"
	RelTypeHyperlink  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const namespaces = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// FixtureRel is an extra relationship of a fixture slide. rId1 is reserved for the layout.
type FixtureRel struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// SlideFixture describes one slide of a generated presentation.
type SlideFixture struct {
	// Shapes holds the shape elements placed in the slide's shape tree.
	Shapes string
	Rels   []FixtureRel
	Notes  bool
}

// CertificateShapes is a certificate-like shape tree: a text box with a
// placeholder split across runs, a picture, a 2x2 table and a group that
// nests text and a second picture.
const CertificateShapes = `
<p:sp>
  <p:nvSpPr><p:cNvPr id="2" name="Title"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
  <p:spPr><a:xfrm><a:off x="457200" y="274638"/><a:ext cx="8229600" cy="1143000"/></a:xfrm></p:spPr>
  <p:txBody>
    <a:bodyPr/>
    <a:p><a:r><a:rPr lang="en-US" b="1"/><a:t>Awarded to {NAME}</a:t></a:r></a:p>
    <a:p><a:r><a:rPr lang="en-US" i="1"/><a:t>held on [event_</a:t></a:r><a:r><a:rPr lang="en-US"/><a:t>date] for {position} place</a:t></a:r><a:endParaRPr lang="en-US"/></a:p>
    <a:p><a:r><a:t>Keep {unmapped_key}</a:t></a:r></a:p>
  </p:txBody>
</p:sp>
<p:pic>
  <p:nvPicPr><p:cNvPr id="3" name="Logo"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
  <p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
  <p:spPr><a:xfrm><a:off x="914400" y="457200"/><a:ext cx="1828800" cy="914400"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>
</p:pic>
<p:graphicFrame>
  <p:nvGraphicFramePr><p:cNvPr id="4" name="Details"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>
  <p:xfrm><a:off x="457200" y="3200400"/><a:ext cx="8229600" cy="741680"/></p:xfrm>
  <a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl>
    <a:tblGrid><a:gridCol w="4114800"/><a:gridCol w="4114800"/></a:tblGrid>
    <a:tr h="370840">
      <a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>Room {room}</a:t></a:r></a:p></a:txBody></a:tc>
      <a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>Class of [Year]</a:t></a:r></a:p></a:txBody></a:tc>
    </a:tr>
    <a:tr h="370840">
      <a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>Team: {team name}</a:t></a:r></a:p></a:txBody></a:tc>
      <a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:t>{ EVENT }</a:t></a:r></a:p></a:txBody></a:tc>
    </a:tr>
  </a:tbl></a:graphicData></a:graphic>
</p:graphicFrame>
<p:grpSp>
  <p:nvGrpSpPr><p:cNvPr id="5" name="Footer"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
  <p:grpSpPr><a:xfrm><a:off x="0" y="5000000"/><a:ext cx="9144000" cy="1000000"/><a:chOff x="0" y="5000000"/><a:chExt cx="9144000" cy="1000000"/></a:xfrm></p:grpSpPr>
  <p:sp>
    <p:nvSpPr><p:cNvPr id="6" name="Events"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
    <p:spPr/>
    <p:txBody><a:bodyPr/><a:p><a:r><a:t>For taking part in {events}</a:t></a:r></a:p></p:txBody>
  </p:sp>
  <p:sp>
    <p:nvSpPr><p:cNvPr id="7" name="Signature"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
    <p:spPr/>
    <p:txBody><a:bodyPr/><a:p><a:r><a:t>Tournaments office, {award date}</a:t></a:r></a:p></p:txBody>
  </p:sp>
  <p:pic>
    <p:nvPicPr><p:cNvPr id="8" name="Seal"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>
    <p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
    <p:spPr><a:xfrm><a:off x="8000000" y="5000000"/><a:ext cx="500000" cy="500000"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>
  </p:pic>
</p:grpSp>
`

// CertificateSlide returns the certificate fixture slide with its image and notes.
func CertificateSlide() SlideFixture {
	return SlideFixture{
		Shapes: CertificateShapes,
		Rels: []FixtureRel{
			{ID: "rId2", Type: RelTypeImage, Target: "../media/image1.png"},
		},
		Notes: true,
	}
}

// CertificateTemplate builds a one-slide certificate template.
func CertificateTemplate(t testing.TB) []byte {
	t.Helper()
	return BuildPresentation(t, CertificateSlide())
}

// BuildPresentation assembles a minimal but well-formed presentation package.
func BuildPresentation(t testing.TB, slides ...SlideFixture) []byte {
	t.Helper()

	parts := map[string][]byte{}
	var overrides []string
	var presRels []string
	var slideIDs []string

	override := func(part, contentType string) {
		overrides = append(overrides, fmt.Sprintf(`<Override PartName="/%s" ContentType="%s"/>`, part, contentType))
	}

	parts["_rels/.rels"] = rels(FixtureRel{
		ID:     "rId1",
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument",
		Target: "ppt/presentation.xml",
	})

	override("ppt/presentation.xml", "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml")
	presRels = append(presRels, relXML(FixtureRel{
		ID:     "rId1",
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster",
		Target: "slideMasters/slideMaster1.xml",
	}))

	parts["ppt/slideMasters/slideMaster1.xml"] = []byte(xmlHeader + `<p:sldMaster ` + namespaces + `><p:cSld><p:spTree>` + emptyTreeProps +
		`</p:spTree></p:cSld><p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`)
	parts["ppt/slideMasters/_rels/slideMaster1.xml.rels"] = rels(FixtureRel{
		ID:     "rId1",
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout",
		Target: "../slideLayouts/slideLayout1.xml",
	})
	override("ppt/slideMasters/slideMaster1.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml")

	parts["ppt/slideLayouts/slideLayout1.xml"] = []byte(xmlHeader + `<p:sldLayout ` + namespaces + ` type="blank"><p:cSld name="Blank"><p:spTree>` + emptyTreeProps +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`)
	parts["ppt/slideLayouts/_rels/slideLayout1.xml.rels"] = rels(FixtureRel{
		ID:     "rId1",
		Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster",
		Target: "../slideMasters/slideMaster1.xml",
	})
	override("ppt/slideLayouts/slideLayout1.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml")

	parts["ppt/media/image1.png"] = PNG(t)

	for i, slide := range slides {
		n := i + 1
		name := fmt.Sprintf("ppt/slides/slide%d.xml", n)
		relID := fmt.Sprintf("rId%d", n+1)

		parts[name] = []byte(xmlHeader + `<p:sld ` + namespaces + `><p:cSld><p:spTree>` + emptyTreeProps + slide.Shapes +
			`<p:extLst><p:ext uri="{BB962C8B-B14F-4D97-AF65-F5344CB8AC3E}"/></p:extLst></p:spTree></p:cSld>` +
			`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr><p:timing><p:tnLst/></p:timing></p:sld>`)
		override(name, "application/vnd.openxmlformats-officedocument.presentationml.slide+xml")

		slideRels := []FixtureRel{{
			ID:     "rId1",
			Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout",
			Target: "../slideLayouts/slideLayout1.xml",
		}}
		slideRels = append(slideRels, slide.Rels...)

		if slide.Notes {
			notes := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n)
			parts[notes] = []byte(xmlHeader + `<p:notes ` + namespaces + `><p:cSld><p:spTree>` + emptyTreeProps + `</p:spTree></p:cSld></p:notes>`)
			parts[fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", n)] = rels(FixtureRel{
				ID:     "rId1",
				Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide",
				Target: fmt.Sprintf("../slides/slide%d.xml", n),
			})
			override(notes, "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml")
			slideRels = append(slideRels, FixtureRel{
				ID:     "rId9",
				Type:   RelTypeNotesSlide,
				Target: fmt.Sprintf("../notesSlides/notesSlide%d.xml", n),
			})
		}
		parts[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)] = rels(slideRels...)

		presRels = append(presRels, relXML(FixtureRel{
			ID:     relID,
			Type:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide",
			Target: fmt.Sprintf("slides/slide%d.xml", n),
		}))
		slideIDs = append(slideIDs, fmt.Sprintf(`<p:sldId id="%d" r:id="%s"/>`, 255+n, relID))
	}

	sldIDList := ""
	if len(slideIDs) > 0 {
		sldIDList = "<p:sldIdLst>" + strings.Join(slideIDs, "") + "</p:sldIdLst>"
	}
	parts["ppt/presentation.xml"] = []byte(xmlHeader + `<p:presentation ` + namespaces + `>` +
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` + sldIDList +
		`<p:sldSz cx="9144000" cy="6858000"/><p:notesSz cx="6858000" cy="9144000"/></p:presentation>`)
	parts["ppt/_rels/presentation.xml.rels"] = []byte(xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(presRels, "") + `</Relationships>`)

	parts["[Content_Types].xml"] = []byte(xmlHeader +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		strings.Join(overrides, "") + `</Types>`)

	return Zip(t, parts)
}

const emptyTreeProps = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

func relXML(rel FixtureRel) string {
	mode := ""
	if rel.TargetMode != "" {
		mode = fmt.Sprintf(` TargetMode="%s"`, rel.TargetMode)
	}
	return fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="%s"%s/>`, rel.ID, rel.Type, rel.Target, mode)
}

func rels(entries ...FixtureRel) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, rel := range entries {
		b.WriteString(relXML(rel))
	}
	b.WriteString(`</Relationships>`)
	return []byte(b.String())
}

// Zip writes parts into a zip archive with a stable entry order.
func Zip(t testing.TB, parts map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(parts[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ZipParts reads every entry of a zip archive.
func ZipParts(t testing.TB, data []byte) map[string][]byte {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		parts[file.Name] = content
	}
	return parts
}

// PNG encodes a small opaque image.
func PNG(t testing.TB) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
