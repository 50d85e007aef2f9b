// Package pptx implements the subset of PresentationML needed to turn a
// certificate template into a multi-slide deck: opening a package, cloning
// slides, substituting placeholder text and writing the package back out.
package pptx

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
)

const contentTypesPart = "[Content_Types].xml"

var (
	// ErrNotPresentation indicates the package lacks the parts of a presentation.
	ErrNotPresentation = errors.New("package is not a presentation")
	// ErrSlideNotFound indicates a slide does not belong to the deck.
	ErrSlideNotFound = errors.New("slide not found in deck")
)

// Deck is an in-memory PresentationML package.
type Deck struct {
	order   []string
	raw     map[string][]byte
	docs    map[string]*etree.Document
	deleted map[string]bool

	types        *contentTypes
	presPart     string
	presentation *etree.Document
	presRels     *relationships
	slides       []*Slide
}

// Open parses a presentation package held in memory.
func Open(data []byte) (*Deck, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}

	d := &Deck{
		raw:     make(map[string][]byte, len(reader.File)),
		docs:    make(map[string]*etree.Document),
		deleted: make(map[string]bool),
	}

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return nil, fmt.Errorf("read part %s: %w", file.Name, err)
		}
		d.order = append(d.order, file.Name)
		d.raw[file.Name] = content
	}

	typesDoc, err := d.xmlPart(contentTypesPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	d.types = &contentTypes{doc: typesDoc}

	packageRels, err := d.relationshipsFor("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	officeDoc, ok := packageRels.firstOfType(relTypeOfficeDocument)
	if !ok {
		return nil, fmt.Errorf("%w: no office document relationship", ErrNotPresentation)
	}
	d.presPart = resolveTarget("", officeDoc.Target)

	d.presentation, err = d.xmlPart(d.presPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPresentation, err)
	}
	if root := d.presentation.Root(); root == nil || root.Tag != "presentation" {
		return nil, fmt.Errorf("%w: %s is not a presentation part", ErrNotPresentation, d.presPart)
	}

	d.presRels, err = d.relationshipsFor(d.presPart)
	if err != nil {
		return nil, err
	}

	if list := d.presentation.Root().SelectElement("p:sldIdLst"); list != nil {
		for _, sldID := range list.SelectElements("p:sldId") {
			relID := sldID.SelectAttrValue("r:id", "")
			rel, ok := d.presRels.get(relID)
			if !ok {
				return nil, fmt.Errorf("slide relationship %q is missing", relID)
			}
			slide, err := d.loadSlide(resolveTarget(d.presPart, rel.Target), relID)
			if err != nil {
				return nil, err
			}
			d.slides = append(d.slides, slide)
		}
	}

	return d, nil
}

func (d *Deck) loadSlide(part, relID string) (*Slide, error) {
	doc, err := d.xmlPart(part)
	if err != nil {
		return nil, err
	}
	if spTree(doc.Root()) == nil {
		return nil, fmt.Errorf("slide %s has no shape tree", part)
	}
	rels, err := d.relationshipsFor(part)
	if err != nil {
		return nil, err
	}
	return &Slide{deck: d, part: part, relID: relID, doc: doc, rels: rels}, nil
}

// Slides returns the slides in presentation order.
func (d *Deck) Slides() []*Slide {
	return append([]*Slide(nil), d.slides...)
}

// SlideCount reports the number of slides in the deck.
func (d *Deck) SlideCount() int {
	return len(d.slides)
}

// RemoveSlide drops a slide, its relationships and its notes from the package.
func (d *Deck) RemoveSlide(slide *Slide) error {
	index := -1
	for i, s := range d.slides {
		if s == slide {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrSlideNotFound
	}

	if list := d.presentation.Root().SelectElement("p:sldIdLst"); list != nil {
		for _, sldID := range list.SelectElements("p:sldId") {
			if sldID.SelectAttrValue("r:id", "") == slide.relID {
				list.RemoveChild(sldID)
			}
		}
	}
	d.presRels.remove(slide.relID)

	for _, notes := range slide.rels.ofType(relTypeNotesSlide) {
		notesPart := resolveTarget(slide.part, notes.Target)
		d.deletePart(notesPart)
		d.deletePart(relsPartFor(notesPart))
		d.types.removeOverride(notesPart)
	}

	d.deletePart(slide.part)
	d.deletePart(relsPartFor(slide.part))
	d.types.removeOverride(slide.part)

	d.slides = append(d.slides[:index], d.slides[index+1:]...)
	return nil
}

// Save writes the package to w.
func (d *Deck) Save(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range d.order {
		if d.deleted[name] {
			continue
		}

		var content []byte
		if doc, ok := d.docs[name]; ok {
			serialized, err := doc.WriteToBytes()
			if err != nil {
				return fmt.Errorf("serialize %s: %w", name, err)
			}
			content = serialized
		} else {
			content = d.raw[name]
		}

		writer, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := writer.Write(content); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// Bytes serialises the package into memory.
func (d *Deck) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Deck) hasPart(name string) bool {
	if d.deleted[name] {
		return false
	}
	if _, ok := d.docs[name]; ok {
		return true
	}
	_, ok := d.raw[name]
	return ok
}

func (d *Deck) partBytes(name string) ([]byte, bool) {
	if d.deleted[name] {
		return nil, false
	}
	content, ok := d.raw[name]
	return content, ok
}

func (d *Deck) xmlPart(name string) (*etree.Document, error) {
	if doc, ok := d.docs[name]; ok && !d.deleted[name] {
		return doc, nil
	}
	content, ok := d.partBytes(name)
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	d.docs[name] = doc
	return doc, nil
}

// relationshipsFor loads the rels part of the given part, or an empty set when absent.
func (d *Deck) relationshipsFor(part string) (*relationships, error) {
	name := relsPartFor(part)
	if !d.hasPart(name) {
		return newRelationships(name), nil
	}
	doc, err := d.xmlPart(name)
	if err != nil {
		return nil, err
	}
	return &relationships{part: name, doc: doc}, nil
}

func (d *Deck) putXMLPart(name string, doc *etree.Document) {
	d.list(name)
	delete(d.deleted, name)
	d.docs[name] = doc
}

func (d *Deck) putRawPart(name string, content []byte) {
	d.list(name)
	delete(d.deleted, name)
	d.raw[name] = content
}

func (d *Deck) list(name string) {
	for _, existing := range d.order {
		if existing == name {
			return
		}
	}
	d.order = append(d.order, name)
}

func (d *Deck) deletePart(name string) {
	d.deleted[name] = true
	delete(d.docs, name)
	delete(d.raw, name)
}

// nextPartName returns "<dir>/<prefix><n><ext>" numbered after every existing
// "<dir>/<prefix><m>.*" part, whatever its extension.
func (d *Deck) nextPartName(dir, prefix, ext string) string {
	highest := 0
	lead := dir + "/" + prefix
	for _, name := range d.order {
		if !strings.HasPrefix(name, lead) {
			continue
		}
		number, _, found := strings.Cut(strings.TrimPrefix(name, lead), ".")
		if !found {
			continue
		}
		n, err := strconv.Atoi(number)
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%d%s", lead, highest+1, ext)
}

// registerSlide links a freshly built slide part into the presentation.
func (d *Deck) registerSlide(slide *Slide) error {
	if err := d.types.addOverride(slide.part, contentTypeSlide); err != nil {
		return err
	}

	slide.relID = d.presRels.add(relTypeSlide, relativeTarget(d.presPart, slide.part), "")

	root := d.presentation.Root()
	list := root.SelectElement("p:sldIdLst")
	if list == nil {
		list = etree.NewElement("p:sldIdLst")
		insertAfterSibling(root, list, "sldMasterIdLst", "notesMasterIdLst", "handoutMasterIdLst")
	}

	nextID := 256
	for _, sldID := range list.SelectElements("p:sldId") {
		if n, err := strconv.Atoi(sldID.SelectAttrValue("id", "")); err == nil && n >= nextID {
			nextID = n + 1
		}
	}
	entry := list.CreateElement("p:sldId")
	entry.CreateAttr("id", strconv.Itoa(nextID))
	entry.CreateAttr("r:id", slide.relID)

	d.putXMLPart(slide.part, slide.doc)
	d.putXMLPart(slide.rels.part, slide.rels.doc)
	d.slides = append(d.slides, slide)
	return nil
}

// mediaPartFor returns a media part holding blob, adding one when no part matches.
func (d *Deck) mediaPartFor(blob []byte) (string, error) {
	sum := sha1.Sum(blob)
	for _, name := range d.order {
		if !strings.HasPrefix(name, "ppt/media/") {
			continue
		}
		if content, ok := d.partBytes(name); ok && sha1.Sum(content) == sum {
			return name, nil
		}
	}

	detected := mimetype.Detect(blob)
	ext := detected.Extension()
	if ext == "" {
		ext = ".bin"
	}
	if err := d.types.ensureDefault(ext, detected.String()); err != nil {
		return "", err
	}

	name := d.nextPartName("ppt/media", "image", ext)
	d.putRawPart(name, blob)
	return name, nil
}

// insertAfterSibling inserts child after the last existing sibling with one of the given tags.
func insertAfterSibling(parent, child *etree.Element, after ...string) {
	index := -1
	for i, token := range parent.Child {
		el, ok := token.(*etree.Element)
		if !ok {
			continue
		}
		for _, tag := range after {
			if el.Tag == tag {
				index = i
			}
		}
	}
	parent.InsertChildAt(index+1, child)
}

func readZipFile(file *zip.File) ([]byte, error) {
	reader, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
