package pptx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ShapeKind enumerates the shape-tree elements the engine distinguishes.
type ShapeKind int

const (
	ShapeOther ShapeKind = iota
	ShapeAuto
	ShapePicture
	ShapeGroup
	ShapeTable
	ShapeGraphicFrame
	ShapeConnector
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeAuto:
		return "auto"
	case ShapePicture:
		return "picture"
	case ShapeGroup:
		return "group"
	case ShapeTable:
		return "table"
	case ShapeGraphicFrame:
		return "graphic_frame"
	case ShapeConnector:
		return "connector"
	default:
		return "other"
	}
}

// Transform is a shape's offset and extent in EMU.
type Transform struct {
	X  int64
	Y  int64
	CX int64
	CY int64
}

// Shape is a read-only view over one element of a slide's shape tree.
type Shape struct {
	Kind  ShapeKind
	el    *etree.Element
	slide *Slide
}

func classify(el *etree.Element) ShapeKind {
	switch el.Tag {
	case "sp":
		return ShapeAuto
	case "pic":
		return ShapePicture
	case "grpSp":
		return ShapeGroup
	case "cxnSp":
		return ShapeConnector
	case "graphicFrame":
		if tableElement(el) != nil {
			return ShapeTable
		}
		return ShapeGraphicFrame
	default:
		return ShapeOther
	}
}

// isShapeTreeMeta reports the non-shape children of spTree/grpSp.
func isShapeTreeMeta(el *etree.Element) bool {
	switch el.Tag {
	case "nvGrpSpPr", "grpSpPr", "extLst":
		return true
	default:
		return false
	}
}

func shapeElements(container *etree.Element) []*etree.Element {
	var result []*etree.Element
	for _, child := range container.ChildElements() {
		if isShapeTreeMeta(child) {
			continue
		}
		result = append(result, child)
	}
	return result
}

func spTree(root *etree.Element) *etree.Element {
	if root == nil {
		return nil
	}
	cSld := root.SelectElement("p:cSld")
	if cSld == nil {
		return nil
	}
	return cSld.SelectElement("p:spTree")
}

func tableElement(frame *etree.Element) *etree.Element {
	graphic := frame.SelectElement("a:graphic")
	if graphic == nil {
		return nil
	}
	data := graphic.SelectElement("a:graphicData")
	if data == nil {
		return nil
	}
	return data.SelectElement("a:tbl")
}

// nonVisualProps returns the cNvPr element of a shape.
func nonVisualProps(el *etree.Element) *etree.Element {
	for _, child := range el.ChildElements() {
		if strings.HasPrefix(child.Tag, "nv") {
			return child.SelectElement("p:cNvPr")
		}
	}
	return nil
}

// Name returns the shape name authored in the template.
func (s *Shape) Name() string {
	if props := nonVisualProps(s.el); props != nil {
		return props.SelectAttrValue("name", "")
	}
	return ""
}

// ID returns the shape id, or 0 when it is missing.
func (s *Shape) ID() int {
	if props := nonVisualProps(s.el); props != nil {
		id, _ := strconv.Atoi(props.SelectAttrValue("id", ""))
		return id
	}
	return 0
}

// Children lists the members of a group shape.
func (s *Shape) Children() []*Shape {
	if s.Kind != ShapeGroup {
		return nil
	}
	return wrapShapes(s.slide, shapeElements(s.el))
}

// CellCount counts the cells of a table shape.
func (s *Shape) CellCount() int {
	if s.Kind != ShapeTable {
		return 0
	}
	count := 0
	for _, row := range tableElement(s.el).SelectElements("a:tr") {
		count += len(row.SelectElements("a:tc"))
	}
	return count
}

// Text returns the shape's paragraphs joined by newlines, including table cells and group members.
func (s *Shape) Text() string {
	var paragraphs []string
	for _, body := range textBodies(s.el) {
		for _, p := range body.SelectElements("a:p") {
			paragraphs = append(paragraphs, paragraphText(p))
		}
	}
	return strings.Join(paragraphs, "\n")
}

// Transform returns the shape's position and size.
func (s *Shape) Transform() (Transform, bool) {
	xfrm := transformElement(s.el)
	if xfrm == nil {
		return Transform{}, false
	}
	off := xfrm.SelectElement("a:off")
	ext := xfrm.SelectElement("a:ext")
	if off == nil || ext == nil {
		return Transform{}, false
	}

	var t Transform
	var err error
	if t.X, err = strconv.ParseInt(off.SelectAttrValue("x", ""), 10, 64); err != nil {
		return Transform{}, false
	}
	if t.Y, err = strconv.ParseInt(off.SelectAttrValue("y", ""), 10, 64); err != nil {
		return Transform{}, false
	}
	if t.CX, err = strconv.ParseInt(ext.SelectAttrValue("cx", ""), 10, 64); err != nil {
		return Transform{}, false
	}
	if t.CY, err = strconv.ParseInt(ext.SelectAttrValue("cy", ""), 10, 64); err != nil {
		return Transform{}, false
	}
	return t, true
}

func transformElement(el *etree.Element) *etree.Element {
	switch el.Tag {
	case "graphicFrame":
		return el.SelectElement("p:xfrm")
	case "grpSp":
		if props := el.SelectElement("p:grpSpPr"); props != nil {
			return props.SelectElement("a:xfrm")
		}
	default:
		if props := el.SelectElement("p:spPr"); props != nil {
			return props.SelectElement("a:xfrm")
		}
	}
	return nil
}

// Image returns the embedded bytes of a picture shape.
func (s *Shape) Image() ([]byte, error) {
	if s.Kind != ShapePicture {
		return nil, fmt.Errorf("%w: %s shape has no image", ErrPictureCopy, s.Kind)
	}

	fill := s.el.SelectElement("p:blipFill")
	if fill == nil {
		return nil, fmt.Errorf("%w: picture has no blip fill", ErrPictureCopy)
	}
	blip := fill.SelectElement("a:blip")
	if blip == nil {
		return nil, fmt.Errorf("%w: picture has no blip", ErrPictureCopy)
	}

	relID := blip.SelectAttrValue("r:embed", "")
	if relID == "" {
		return nil, fmt.Errorf("%w: picture is linked, not embedded", ErrPictureCopy)
	}
	rel, ok := s.slide.rels.get(relID)
	if !ok || rel.external() {
		return nil, fmt.Errorf("%w: image relationship %q unavailable", ErrPictureCopy, relID)
	}

	blob, ok := s.slide.deck.partBytes(resolveTarget(s.slide.part, rel.Target))
	if !ok {
		return nil, fmt.Errorf("%w: image part %s missing", ErrPictureCopy, rel.Target)
	}
	return blob, nil
}

func wrapShapes(slide *Slide, elements []*etree.Element) []*Shape {
	shapes := make([]*Shape, 0, len(elements))
	for _, el := range elements {
		shapes = append(shapes, &Shape{Kind: classify(el), el: el, slide: slide})
	}
	return shapes
}

// textBodies collects every txBody reachable from el, descending into groups and table cells.
func textBodies(el *etree.Element) []*etree.Element {
	switch classify(el) {
	case ShapeGroup:
		var bodies []*etree.Element
		for _, child := range shapeElements(el) {
			bodies = append(bodies, textBodies(child)...)
		}
		return bodies
	case ShapeTable:
		var bodies []*etree.Element
		for _, row := range tableElement(el).SelectElements("a:tr") {
			for _, cell := range row.SelectElements("a:tc") {
				if body := cell.SelectElement("a:txBody"); body != nil {
					bodies = append(bodies, body)
				}
			}
		}
		return bodies
	case ShapeAuto, ShapeConnector:
		if body := el.SelectElement("p:txBody"); body != nil {
			return []*etree.Element{body}
		}
	}
	return nil
}

func paragraphText(p *etree.Element) string {
	var b strings.Builder
	for _, child := range p.ChildElements() {
		switch child.Tag {
		case "r", "fld":
			if t := child.SelectElement("a:t"); t != nil {
				b.WriteString(t.Text())
			}
		case "br":
			b.WriteString("\v")
		}
	}
	return b.String()
}
