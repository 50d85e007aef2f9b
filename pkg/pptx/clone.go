package pptx

import (
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/beevik/etree"
)

// ErrPictureCopy signals that a picture could not be re-inserted from its
// embedded image. CloneSlide answers it by deep-copying the picture markup.
var ErrPictureCopy = errors.New("picture copy failed")

// CloneSlide appends a copy of src to the deck. The copy uses the same layout
// and contains only the shapes of src; src itself is left untouched.
func (d *Deck) CloneSlide(src *Slide) (*Slide, error) {
	if src == nil || src.deck != d {
		return nil, ErrSlideNotFound
	}

	layout, ok := src.rels.firstOfType(relTypeSlideLayout)
	if !ok {
		return nil, fmt.Errorf("slide %s has no layout relationship", src.part)
	}

	part := d.nextPartName(path.Dir(src.part), "slide", ".xml")
	clone := &Slide{
		deck: d,
		part: part,
		doc:  emptySlideLike(src.doc),
		rels: newRelationships(relsPartFor(part)),

		idFloor: highestShapeID(spTree(src.doc.Root())),
	}
	clone.rels.add(relTypeSlideLayout, layout.Target, "")

	mapped := make(map[string]string)
	clone.carryRelationships(src, clone.doc.Root(), mapped)

	for _, shape := range src.Shapes() {
		if err := clone.copyShape(shape, mapped); err != nil {
			return nil, fmt.Errorf("copy shape %q: %w", shape.Name(), err)
		}
	}

	if err := d.registerSlide(clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// emptySlideLike copies the slide skeleton (background, colour mapping,
// transition) of doc with an empty shape tree and no animation timing.
func emptySlideLike(doc *etree.Document) *etree.Document {
	out := etree.NewDocument()
	out.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)

	root := doc.Root().Copy()
	if timing := root.SelectElement("p:timing"); timing != nil {
		root.RemoveChild(timing)
	}
	tree := spTree(root)
	for _, shape := range shapeElements(tree) {
		tree.RemoveChild(shape)
	}

	out.SetRoot(root)
	return out
}

// copyShape tries the picture path first and falls back to a structural copy
// only when the picture path reports ErrPictureCopy.
func (s *Slide) copyShape(shape *Shape, mapped map[string]string) error {
	if shape.Kind == ShapePicture {
		err := s.addPictureFrom(shape)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrPictureCopy) {
			return err
		}
	}
	return s.insertCopy(shape, mapped)
}

func (s *Slide) addPictureFrom(shape *Shape) error {
	blob, err := shape.Image()
	if err != nil {
		return err
	}
	transform, ok := shape.Transform()
	if !ok {
		return fmt.Errorf("%w: picture has no position", ErrPictureCopy)
	}

	mediaPart, err := s.deck.mediaPartFor(blob)
	if err != nil {
		return err
	}
	relID := s.rels.add(relTypeImage, relativeTarget(s.part, mediaPart), "")

	id := s.nextShapeID()
	pic := etree.NewElement("p:pic")

	nv := pic.CreateElement("p:nvPicPr")
	props := nv.CreateElement("p:cNvPr")
	props.CreateAttr("id", strconv.Itoa(id))
	props.CreateAttr("name", "Picture "+strconv.Itoa(id-1))
	props.CreateAttr("descr", path.Base(mediaPart))
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	fill := pic.CreateElement("p:blipFill")
	fill.CreateElement("a:blip").CreateAttr("r:embed", relID)
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("p:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", strconv.FormatInt(transform.X, 10))
	off.CreateAttr("y", strconv.FormatInt(transform.Y, 10))
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", strconv.FormatInt(transform.CX, 10))
	ext.CreateAttr("cy", strconv.FormatInt(transform.CY, 10))
	spPr.CreateElement("a:prstGeom").CreateAttr("prst", "rect")
	spPr.SelectElement("a:prstGeom").CreateElement("a:avLst")

	s.insertShape(pic)
	return nil
}

func (s *Slide) insertCopy(shape *Shape, mapped map[string]string) error {
	el := shape.el.Copy()
	s.carryRelationships(shape.slide, el, mapped)
	s.insertShape(el)
	return nil
}

// insertShape places el at the top of the z-order, ahead of the tree's extLst.
func (s *Slide) insertShape(el *etree.Element) {
	tree := spTree(s.doc.Root())
	if ext := tree.SelectElement("p:extLst"); ext != nil {
		tree.InsertChildAt(ext.Index(), el)
		return
	}
	tree.AddChild(el)
}

// carryRelationships re-creates on s every relationship that the copied
// markup under el refers to in src, rewriting the r:* attributes to the new ids.
func (s *Slide) carryRelationships(src *Slide, el *etree.Element, mapped map[string]string) {
	for i := range el.Attr {
		attr := &el.Attr[i]
		if attr.Space != "r" {
			continue
		}
		if newID, ok := mapped[attr.Value]; ok {
			attr.Value = newID
			continue
		}
		rel, ok := src.rels.get(attr.Value)
		if !ok {
			continue
		}
		target := rel.Target
		if !rel.external() {
			target = relativeTarget(s.part, resolveTarget(src.part, rel.Target))
		}
		newID := s.rels.add(rel.Type, target, rel.TargetMode)
		mapped[attr.Value] = newID
		attr.Value = newID
	}
	for _, child := range el.ChildElements() {
		s.carryRelationships(src, child, mapped)
	}
}

// nextShapeID returns an id above every shape on the slide and every shape
// still to be copied from its template.
func (s *Slide) nextShapeID() int {
	return max(highestShapeID(spTree(s.doc.Root())), s.idFloor) + 1
}

func highestShapeID(tree *etree.Element) int {
	highest := 0
	if tree == nil {
		return highest
	}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == "cNvPr" {
			if id, err := strconv.Atoi(el.SelectAttrValue("id", "")); err == nil && id > highest {
				highest = id
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(tree)
	return highest
}
